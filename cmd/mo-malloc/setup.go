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

package main

import (
	"sync"

	"github.com/matrixorigin/safemalloc/pkg/common/malloc"
	"github.com/matrixorigin/safemalloc/pkg/config"
	"github.com/matrixorigin/safemalloc/pkg/logutil"
)

var (
	setupLoggerOnce    sync.Once
	setupAllocatorOnce sync.Once
)

func setupLogger(cfg *config.Config) {
	setupLoggerOnce.Do(func() {
		logutil.SetupMOLogger(&cfg.Log)
	})
}

func setupAllocator(cfg *config.Config) error {
	var err error
	setupAllocatorOnce.Do(func() {
		var allocator malloc.Allocator
		allocator, err = cfg.NewAllocator()
		if err != nil {
			return
		}
		malloc.SetDefaultAllocator(allocator)
		logutil.Infof("allocator %s ready, metrics %t, fault injection %t",
			cfg.Malloc.Allocator, cfg.Malloc.EnableMetrics, cfg.Malloc.Fault.Enabled())
	})
	return err
}
