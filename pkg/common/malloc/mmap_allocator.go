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
	"errors"
	"syscall"

	"go.uber.org/zap"

	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
	"github.com/matrixorigin/safemalloc/pkg/logutil"
)

// MmapAllocator backs every block with its own anonymous private mapping.
// Free unmaps the block, so it must be given the block as returned by
// Allocate or Reallocate (reslicing the length is fine, the capacity
// identifies the mapping).
type MmapAllocator struct{}

// NewMmapAllocator returns an error on platforms without anonymous mmap.
func NewMmapAllocator() (*MmapAllocator, error) {
	if !MmapSupported {
		return nil, moerr.NewNotSupportedNoCtx("mmap allocator on this platform")
	}
	return &MmapAllocator{}, nil
}

var _ Allocator = new(MmapAllocator)

func (m *MmapAllocator) Allocate(size uint64) ([]byte, error) {
	if size == 0 {
		return zeroBlock, nil
	}
	if size > maxRequestSize {
		return nil, moerr.NewOOMNoCtx()
	}
	block, err := mmapAnonymous(size)
	if err != nil {
		return nil, convertMmapError(err)
	}
	return block, nil
}

func (m *MmapAllocator) Reallocate(block []byte, size uint64) ([]byte, error) {
	if cap(block) == 0 {
		return m.Allocate(size)
	}
	if size == 0 {
		m.Free(block)
		return zeroBlock, nil
	}
	if size <= uint64(cap(block)) {
		return block[:size], nil
	}
	ret, err := m.Allocate(size)
	if err != nil {
		return nil, err
	}
	copy(ret, block)
	m.Free(block)
	return ret, nil
}

func (m *MmapAllocator) Free(block []byte) {
	if cap(block) == 0 {
		return
	}
	if err := munmap(block[:cap(block)]); err != nil {
		logutil.Warn("munmap failed",
			zap.Int("cap", cap(block)),
			zap.Error(err),
		)
	}
}

func convertMmapError(err error) error {
	if errors.Is(err, syscall.ENOMEM) {
		return moerr.NewOOMNoCtx().WithCause(err)
	}
	return moerr.ConvertGoError(moerr.Context(), err)
}
