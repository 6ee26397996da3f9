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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
	"github.com/matrixorigin/safemalloc/pkg/util/fault"
)

func TestFaultAllocator_FailAt(t *testing.T) {
	allocator := NewFaultAllocator(NewGoAllocator(0), FaultConfig{
		FailAt: 3,
	})

	a, err := allocator.Allocate(8)
	require.NoError(t, err)
	b, err := allocator.Reallocate(a, 16)
	require.NoError(t, err)

	_, err = allocator.Allocate(8)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	_, err = allocator.Reallocate(b, 32)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	require.Equal(t, uint64(4), allocator.Calls())

	allocator.Free(b)
}

func TestFaultAllocator_FailAbove(t *testing.T) {
	allocator := NewFaultAllocator(NewGoAllocator(0), FaultConfig{
		FailAbove: 100,
	})

	block, err := allocator.Allocate(100)
	require.NoError(t, err)
	_, err = allocator.Allocate(101)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	_, err = allocator.Reallocate(block, 200)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
}

func TestFaultConfig_Enabled(t *testing.T) {
	require.False(t, FaultConfig{}.Enabled())
	require.True(t, FaultConfig{FailAt: 1}.Enabled())
	require.True(t, FaultConfig{FailAbove: 1}.Enabled())

	allocator := NewFaultAllocator(NewGoAllocator(0), FaultConfig{})
	for i := 0; i < 10; i++ {
		_, err := allocator.Allocate(1)
		require.NoError(t, err)
	}
}

func newTestCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
	})
}

func TestMetricsAllocator(t *testing.T) {
	allocateCounter := newTestCounter("allocate")
	reallocateCounter := newTestCounter("reallocate")
	freeCounter := newTestCounter("free")
	allocateExhausted := newTestCounter("allocate_exhausted")
	reallocateExhausted := newTestCounter("reallocate_exhausted")

	allocator := NewMetricsAllocator(
		NewFaultAllocator(NewGoAllocator(0), FaultConfig{FailAbove: 64}),
		allocateCounter,
		reallocateCounter,
		freeCounter,
		allocateExhausted,
		reallocateExhausted,
	)

	block, err := allocator.Allocate(32)
	require.NoError(t, err)
	_, err = allocator.Allocate(65)
	require.Error(t, err)
	block, err = allocator.Reallocate(block, 64)
	require.NoError(t, err)
	_, err = allocator.Reallocate(block, 128)
	require.Error(t, err)
	allocator.Free(block)

	require.Equal(t, float64(2), testutil.ToFloat64(allocateCounter))
	require.Equal(t, float64(1), testutil.ToFloat64(allocateExhausted))
	require.Equal(t, float64(2), testutil.ToFloat64(reallocateCounter))
	require.Equal(t, float64(1), testutil.ToFloat64(reallocateExhausted))
	require.Equal(t, float64(1), testutil.ToFloat64(freeCounter))
}

func TestMetricsAllocator_nilCounters(t *testing.T) {
	allocator := NewMetricsAllocator[Allocator](NewGoAllocator(0), nil, nil, nil, nil, nil)
	block, err := allocator.Allocate(8)
	require.NoError(t, err)
	allocator.Free(block)
}

func TestFaultAllocator_points(t *testing.T) {
	fault.Enable()
	defer fault.Disable()
	require.NoError(t, fault.AddFaultPoint(AllocateFaultPoint, "2:2::", "return", 0, ""))

	allocator := NewFaultAllocator(NewGoAllocator(0), FaultConfig{})

	block, err := allocator.Allocate(1)
	require.NoError(t, err)
	_, err = allocator.Allocate(1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	_, err = allocator.Allocate(1)
	require.NoError(t, err)

	// reallocate uses its own point
	_, err = allocator.Reallocate(block, 2)
	require.NoError(t, err)
}

// brokenAllocator fails every request with a non exhaustion error.
type brokenAllocator struct{}

func (brokenAllocator) Allocate(uint64) ([]byte, error) {
	return nil, moerr.NewInternalErrorNoCtx("mmap: bad address")
}

func (brokenAllocator) Reallocate([]byte, uint64) ([]byte, error) {
	return nil, moerr.NewInternalErrorNoCtx("mmap: bad address")
}

func (brokenAllocator) Free([]byte) {}

func TestMetricsAllocator_onlyOOMIsExhaustion(t *testing.T) {
	allocateCounter := newTestCounter("allocate")
	reallocateCounter := newTestCounter("reallocate")
	allocateExhausted := newTestCounter("allocate_exhausted")
	reallocateExhausted := newTestCounter("reallocate_exhausted")

	allocator := NewMetricsAllocator[Allocator](
		brokenAllocator{},
		allocateCounter,
		reallocateCounter,
		nil,
		allocateExhausted,
		reallocateExhausted,
	)
	_, err := allocator.Allocate(8)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
	_, err = allocator.Reallocate(make([]byte, 1), 8)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	require.Equal(t, float64(1), testutil.ToFloat64(allocateCounter))
	require.Equal(t, float64(1), testutil.ToFloat64(reallocateCounter))
	require.Equal(t, float64(0), testutil.ToFloat64(allocateExhausted))
	require.Equal(t, float64(0), testutil.ToFloat64(reallocateExhausted))
}
