// Copyright 2023 Matrix Origin
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

package v2

import "github.com/prometheus/client_golang/prometheus"

var (
	mallocOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "malloc",
			Name:      "operations_total",
			Help:      "Total number of allocator operations.",
		}, []string{"op"})

	MallocAllocateCounter   = mallocOperationCounter.WithLabelValues("allocate")
	MallocReallocateCounter = mallocOperationCounter.WithLabelValues("reallocate")
	MallocFreeCounter       = mallocOperationCounter.WithLabelValues("free")
)

var (
	mallocExhaustedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "malloc",
			Name:      "exhausted_total",
			Help:      "Total number of allocator requests that could not be satisfied.",
		}, []string{"op"})

	MallocAllocateExhaustedCounter   = mallocExhaustedCounter.WithLabelValues("allocate")
	MallocReallocateExhaustedCounter = mallocExhaustedCounter.WithLabelValues("reallocate")
)

func initMallocMetrics() {
	registry.MustRegister(mallocOperationCounter)
	registry.MustRegister(mallocExhaustedCounter)
}
