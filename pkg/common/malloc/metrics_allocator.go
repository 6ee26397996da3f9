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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
)

// MetricsAllocator counts operations and exhaustion events (ErrOOM only)
// of its upstream.
// Only calls are counted; block sizes are not recorded.
type MetricsAllocator[U Allocator] struct {
	upstream U

	allocateCounter            prometheus.Counter
	reallocateCounter          prometheus.Counter
	freeCounter                prometheus.Counter
	allocateExhaustedCounter   prometheus.Counter
	reallocateExhaustedCounter prometheus.Counter
}

// NewMetricsAllocator wraps upstream. Any counter may be nil.
func NewMetricsAllocator[U Allocator](
	upstream U,
	allocateCounter prometheus.Counter,
	reallocateCounter prometheus.Counter,
	freeCounter prometheus.Counter,
	allocateExhaustedCounter prometheus.Counter,
	reallocateExhaustedCounter prometheus.Counter,
) *MetricsAllocator[U] {
	return &MetricsAllocator[U]{
		upstream:                   upstream,
		allocateCounter:            allocateCounter,
		reallocateCounter:          reallocateCounter,
		freeCounter:                freeCounter,
		allocateExhaustedCounter:   allocateExhaustedCounter,
		reallocateExhaustedCounter: reallocateExhaustedCounter,
	}
}

var _ Allocator = new(MetricsAllocator[Allocator])

func (m *MetricsAllocator[U]) Allocate(size uint64) ([]byte, error) {
	inc(m.allocateCounter)
	block, err := m.upstream.Allocate(size)
	if err != nil {
		if moerr.IsMoErrCode(err, moerr.ErrOOM) {
			inc(m.allocateExhaustedCounter)
		}
		return nil, err
	}
	return block, nil
}

func (m *MetricsAllocator[U]) Reallocate(block []byte, size uint64) ([]byte, error) {
	inc(m.reallocateCounter)
	ret, err := m.upstream.Reallocate(block, size)
	if err != nil {
		if moerr.IsMoErrCode(err, moerr.ErrOOM) {
			inc(m.reallocateExhaustedCounter)
		}
		return nil, err
	}
	return ret, nil
}

func (m *MetricsAllocator[U]) Free(block []byte) {
	inc(m.freeCounter)
	m.upstream.Free(block)
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
