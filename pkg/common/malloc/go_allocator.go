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
	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
)

// GoAllocator allocates from the Go heap. Free is a no-op, the garbage
// collector reclaims blocks once the caller drops them.
type GoAllocator struct {
	maxBlockSize uint64
}

// NewGoAllocator returns a GoAllocator refusing requests above
// maxBlockSize bytes. Zero means the memory of the host: physical memory
// plus swap, or RLIMIT_AS when lower, where that can be read.
func NewGoAllocator(maxBlockSize uint64) *GoAllocator {
	if host := hostMemoryLimit(); host > 0 && (maxBlockSize == 0 || host < maxBlockSize) {
		maxBlockSize = host
	}
	return &GoAllocator{
		maxBlockSize: maxBlockSize,
	}
}

// MaxBlockSize returns the largest request served, 0 if unbounded.
func (g *GoAllocator) MaxBlockSize() uint64 {
	return g.maxBlockSize
}

var _ Allocator = new(GoAllocator)

func (g *GoAllocator) Allocate(size uint64) (ret []byte, err error) {
	if err := g.checkSize(size); err != nil {
		return nil, err
	}
	defer func() {
		// makeslice panics when the runtime cannot express the length
		if r := recover(); r != nil {
			ret = nil
			err = moerr.NewOOMNoCtx().WithCause(moerr.ConvertPanicError(moerr.Context(), r))
		}
	}()
	return make([]byte, size), nil
}

func (g *GoAllocator) Reallocate(block []byte, size uint64) ([]byte, error) {
	if block == nil {
		return g.Allocate(size)
	}
	if size <= uint64(cap(block)) {
		return block[:size], nil
	}
	ret, err := g.Allocate(size)
	if err != nil {
		return nil, err
	}
	copy(ret, block)
	return ret, nil
}

func (g *GoAllocator) Free(_ []byte) {}

func (g *GoAllocator) checkSize(size uint64) error {
	if size > maxRequestSize {
		return moerr.NewOOMNoCtx()
	}
	if g.maxBlockSize > 0 && size > g.maxBlockSize {
		return moerr.NewOOMNoCtx()
	}
	return nil
}
