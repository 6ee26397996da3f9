// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package malloc

import (
	"golang.org/x/sys/unix"
)

// hostMemoryLimit is the most a single request can hope to get: physical
// memory plus swap, lowered to RLIMIT_AS when that is set. The runtime
// throws instead of panicking when the kernel refuses more, so larger
// requests have to be turned down before make is reached.
func hostMemoryLimit() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	limit := (uint64(info.Totalram) + uint64(info.Totalswap)) * uint64(info.Unit)

	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rlim); err == nil && rlim.Cur < limit {
		limit = rlim.Cur
	}
	return limit
}
