// Copyright 2022 Matrix Origin
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
	"fmt"

	"go.uber.org/zap"

	"github.com/matrixorigin/safemalloc/pkg/common/fatal"
	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
	"github.com/matrixorigin/safemalloc/pkg/logutil"
)

const (
	msgExhausted        = "memory exhausted"
	msgReallocExhausted = "memory exhausted for realloc"
)

var fatalf = fatal.Fatalf

// SafeAllocator turns allocation failure of its upstream into a fatal
// report. Alloc and Realloc never hand a nil block back for a non-zero
// size: they either succeed or the process exits.
type SafeAllocator struct {
	upstream Allocator
	fatalf   func(format string, args ...any)
}

type SafeAllocatorOption func(*SafeAllocator)

// WithFatalf replaces the reporter called on exhaustion.
func WithFatalf(fn func(format string, args ...any)) SafeAllocatorOption {
	return func(s *SafeAllocator) {
		s.fatalf = fn
	}
}

func NewSafeAllocator(upstream Allocator, opts ...SafeAllocatorOption) *SafeAllocator {
	s := &SafeAllocator{
		upstream: upstream,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upstream returns the allocator doing the actual work.
func (s *SafeAllocator) Upstream() Allocator {
	return s.upstream
}

// Alloc returns an uninitialized block of size bytes.
func (s *SafeAllocator) Alloc(size uint64) []byte {
	block, err := s.upstream.Allocate(size)
	if err != nil || (block == nil && size > 0) {
		logutil.Diagnose("allocate failed",
			zap.Uint64("size", size),
			causeField(err),
		)
		s.report(msgExhausted)
		return nil
	}
	return block
}

// Realloc resizes block to size bytes. The returned block may not share
// memory with block, which must not be used afterwards. A nil block is the
// same as Alloc(size).
func (s *SafeAllocator) Realloc(block []byte, size uint64) []byte {
	if block == nil {
		return s.Alloc(size)
	}
	ret, err := s.upstream.Reallocate(block, size)
	if err != nil || (ret == nil && size > 0) {
		logutil.Diagnose("reallocate failed",
			zap.Int("old-size", len(block)),
			zap.Uint64("size", size),
			causeField(err),
		)
		s.report(msgReallocExhausted)
		return nil
	}
	return ret
}

// Free releases block, nil is a no-op.
func (s *SafeAllocator) Free(block []byte) {
	if block == nil {
		return
	}
	s.upstream.Free(block)
}

// causeField logs a moerr together with the error it was built from.
func causeField(err error) zap.Field {
	if me, ok := err.(*moerr.Error); ok {
		return zap.String("error", me.Display())
	}
	return zap.Error(err)
}

func (s *SafeAllocator) report(msg string) {
	if s.fatalf != nil {
		s.fatalf(msg)
		return
	}
	fatalf(msg)
}

var defaultAllocator = NewSafeAllocator(NewGoAllocator(0))

// SetDefaultAllocator makes upstream back the package level Alloc, Realloc
// and Free. It is not synchronized with concurrent allocations.
func SetDefaultAllocator(upstream Allocator) {
	defaultAllocator = NewSafeAllocator(upstream)
	logutil.Debug("default allocator replaced",
		zap.String("allocator", fmt.Sprintf("%T", upstream)),
	)
}

// DefaultAllocator returns the allocator behind the package level functions.
func DefaultAllocator() *SafeAllocator {
	return defaultAllocator
}

// Alloc allocates size bytes from the default allocator, exiting the
// process with "fatal: memory exhausted" if it cannot.
func Alloc(size uint64) []byte {
	return defaultAllocator.Alloc(size)
}

// Realloc resizes block with the default allocator, exiting the process
// with "fatal: memory exhausted for realloc" if it cannot.
func Realloc(block []byte, size uint64) []byte {
	return defaultAllocator.Realloc(block, size)
}

// Free releases block to the default allocator.
func Free(block []byte) {
	defaultAllocator.Free(block)
}
