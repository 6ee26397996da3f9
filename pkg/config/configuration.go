// Copyright 2021 Matrix Origin
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

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/safemalloc/pkg/common/malloc"
	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
	"github.com/matrixorigin/safemalloc/pkg/logutil"
	"github.com/matrixorigin/safemalloc/pkg/util/fault"
	v2 "github.com/matrixorigin/safemalloc/pkg/util/metric/v2"
)

const (
	GoAllocator   = "go"
	MmapAllocator = "mmap"
)

// MallocParameters of the allocator
type MallocParameters struct {
	//allocator backend, "go" or "mmap". default: go
	Allocator string `toml:"allocator"`

	//largest single request of the go allocator in bytes. default: 0, the memory of the host
	MaxBlockSize uint64 `toml:"max-block-size"`

	//count allocator operations in prometheus. default: true
	EnableMetrics bool `toml:"enable-metrics"`

	//fault injection, disabled unless one of its fields is set
	Fault malloc.FaultConfig `toml:"fault"`
}

// Config is the whole configuration file.
type Config struct {
	Malloc MallocParameters  `toml:"malloc"`
	Log    logutil.LogConfig `toml:"log"`
}

// NewConfig returns a Config with every default filled in.
func NewConfig() *Config {
	c := &Config{}
	c.Malloc.EnableMetrics = true
	c.fillDefaults()
	return c
}

func (c *Config) fillDefaults() {
	if c.Malloc.Allocator == "" {
		c.Malloc.Allocator = GoAllocator
	}
	c.Malloc.Allocator = strings.ToLower(c.Malloc.Allocator)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// LoadConfig decodes a toml file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, convertDecodeError(path, err)
	}
	c.fillDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseConfig decodes toml text on top of the defaults.
func ParseConfig(data string) (*Config, error) {
	c := NewConfig()
	if _, err := toml.Decode(data, c); err != nil {
		return nil, moerr.NewBadConfigNoCtx("%v", err)
	}
	c.fillDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func convertDecodeError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return moerr.NewFileNotFound(moerr.Context(), path)
	}
	return moerr.NewBadConfigNoCtx("%s: %v", path, err)
}

func (c *Config) Validate() error {
	switch c.Malloc.Allocator {
	case GoAllocator:
	case MmapAllocator:
		if !malloc.MmapSupported {
			return moerr.NewBadConfigNoCtx("allocator %q is not supported on this platform", c.Malloc.Allocator)
		}
		if c.Malloc.MaxBlockSize > 0 {
			return moerr.NewBadConfigNoCtx("max-block-size only applies to the %q allocator", GoAllocator)
		}
	default:
		return moerr.NewBadConfigNoCtx("unknown allocator %q", c.Malloc.Allocator)
	}
	seen := make(map[string]struct{}, len(c.Malloc.Fault.Points))
	for _, p := range c.Malloc.Fault.Points {
		switch p.Name {
		case malloc.AllocateFaultPoint, malloc.ReallocateFaultPoint:
		default:
			return moerr.NewBadConfigNoCtx("unknown fault point %q", p.Name)
		}
		if _, ok := seen[p.Name]; ok {
			return moerr.NewBadConfigNoCtx("fault point %q configured twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if err := fault.Validate(p); err != nil {
			return moerr.NewBadConfigNoCtx("fault point %q: %v", p.Name, err)
		}
	}
	return c.Log.Validate()
}

// NewAllocator builds backend -> fault -> metrics as configured.
func (c *Config) NewAllocator() (malloc.Allocator, error) {
	var allocator malloc.Allocator
	switch c.Malloc.Allocator {
	case GoAllocator:
		allocator = malloc.NewGoAllocator(c.Malloc.MaxBlockSize)
	case MmapAllocator:
		mmap, err := malloc.NewMmapAllocator()
		if err != nil {
			return nil, err
		}
		allocator = mmap
	default:
		return nil, moerr.NewBadConfigNoCtx("unknown allocator %q", c.Malloc.Allocator)
	}

	if c.Malloc.Fault.Enabled() {
		if err := c.addFaultPoints(); err != nil {
			return nil, err
		}
		allocator = malloc.NewFaultAllocator(allocator, c.Malloc.Fault)
	}

	if c.Malloc.EnableMetrics {
		allocator = malloc.NewMetricsAllocator(
			allocator,
			v2.MallocAllocateCounter,
			v2.MallocReallocateCounter,
			v2.MallocFreeCounter,
			v2.MallocAllocateExhaustedCounter,
			v2.MallocReallocateExhaustedCounter,
		)
	}
	return allocator, nil
}

// addFaultPoints registers the configured points, all or none. Fault
// injection is left disabled on error unless it was enabled before.
func (c *Config) addFaultPoints() error {
	if len(c.Malloc.Fault.Points) == 0 {
		return nil
	}
	wasEnabled := fault.IsEnabled()
	fault.Enable()
	added := make([]string, 0, len(c.Malloc.Fault.Points))
	for _, p := range c.Malloc.Fault.Points {
		if err := fault.Add(p); err != nil {
			for _, name := range added {
				_ = fault.RemoveFaultPoint(name)
			}
			if !wasEnabled {
				fault.Disable()
			}
			return err
		}
		added = append(added, p.Name)
	}
	return nil
}
