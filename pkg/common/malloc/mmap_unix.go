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

//go:build linux || darwin || freebsd

package malloc

import (
	"golang.org/x/sys/unix"
)

// MmapSupported reports whether MmapAllocator can be used here.
const MmapSupported = true

func mmapAnonymous(size uint64) ([]byte, error) {
	return unix.Mmap(
		-1, 0,
		int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON,
	)
}

func munmap(block []byte) error {
	return unix.Munmap(block)
}
