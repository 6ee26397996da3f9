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

package malloc

import (
	"sync/atomic"

	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
	"github.com/matrixorigin/safemalloc/pkg/util/fault"
)

// Fault points consulted by FaultAllocator, see package fault.
const (
	AllocateFaultPoint   = "malloc.allocate"
	ReallocateFaultPoint = "malloc.reallocate"
)

// FaultConfig controls FaultAllocator. The zero value injects nothing.
type FaultConfig struct {
	// FailAt makes the FailAt-th Allocate/Reallocate call (1-based) and
	// every later one fail. 0 disables.
	FailAt uint64 `toml:"fail-at"`
	// FailAbove makes every request larger than FailAbove bytes fail.
	// 0 disables.
	FailAbove uint64 `toml:"fail-above"`
	// Points are registered with package fault when the allocator is
	// built from configuration. Only AllocateFaultPoint and
	// ReallocateFaultPoint are looked at by FaultAllocator.
	Points []fault.Point `toml:"points"`
}

// Enabled reports whether any fault is configured.
func (c FaultConfig) Enabled() bool {
	return c.FailAt > 0 || c.FailAbove > 0 || len(c.Points) > 0
}

// FaultAllocator simulates exhaustion on top of a working upstream.
type FaultAllocator[U Allocator] struct {
	upstream U
	config   FaultConfig
	calls    atomic.Uint64
}

func NewFaultAllocator[U Allocator](
	upstream U,
	config FaultConfig,
) *FaultAllocator[U] {
	return &FaultAllocator[U]{
		upstream: upstream,
		config:   config,
	}
}

var _ Allocator = new(FaultAllocator[Allocator])

func (f *FaultAllocator[U]) Allocate(size uint64) ([]byte, error) {
	if f.shouldFail(AllocateFaultPoint, size) {
		return nil, moerr.NewOOMNoCtx()
	}
	return f.upstream.Allocate(size)
}

func (f *FaultAllocator[U]) Reallocate(block []byte, size uint64) ([]byte, error) {
	if f.shouldFail(ReallocateFaultPoint, size) {
		return nil, moerr.NewOOMNoCtx()
	}
	return f.upstream.Reallocate(block, size)
}

func (f *FaultAllocator[U]) Free(block []byte) {
	f.upstream.Free(block)
}

// Calls returns how many Allocate/Reallocate calls have been seen.
func (f *FaultAllocator[U]) Calls() uint64 {
	return f.calls.Load()
}

func (f *FaultAllocator[U]) shouldFail(point string, size uint64) bool {
	n := f.calls.Add(1)
	if _, _, fired := fault.TriggerFault(point); fired {
		return true
	}
	if f.config.FailAt > 0 && n >= f.config.FailAt {
		return true
	}
	if f.config.FailAbove > 0 && size > f.config.FailAbove {
		return true
	}
	return false
}
