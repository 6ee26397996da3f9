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
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/matrixorigin/safemalloc/pkg/common/fatal"
	"github.com/matrixorigin/safemalloc/pkg/common/malloc"
	"github.com/matrixorigin/safemalloc/pkg/config"
	"github.com/matrixorigin/safemalloc/pkg/logutil"
)

var (
	version = "dev"

	configFile  = pflag.String("cfg", "", "toml configuration of the allocator, defaults are used when empty")
	allocSize   = pflag.Uint64("size", 4096, "bytes to allocate")
	resizeSize  = pflag.Uint64("resize", 8192, "bytes to reallocate the block to")
	showVersion = pflag.Bool("version", false, "print version information")
)

func main() {
	pflag.Parse()
	if *showVersion {
		fmt.Printf("mo-malloc %s\n", version)
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fatal.Fatalf("failed to load config %q: %v", *configFile, err)
	}

	setupLogger(cfg)
	if err := setupAllocator(cfg); err != nil {
		fatal.Fatalf("failed to set up allocator: %v", err)
	}

	if *httpListenAddr != "" {
		startDebugServer(*httpListenAddr)
	}

	run(os.Stdout, *allocSize, *resizeSize)

	if *httpListenAddr != "" {
		waitSignalToStop()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewConfig(), nil
	}
	return config.LoadConfig(path)
}

// run allocates, fills, resizes and frees one block with the default
// allocator, then prints what happened.
func run(out io.Writer, size, resize uint64) {
	block := malloc.Alloc(size)
	for i := range block {
		block[i] = byte(i)
	}

	block = malloc.Realloc(block, resize)
	kept := min(size, resize)
	intact := true
	for i := uint64(0); i < kept; i++ {
		if block[i] != byte(i) {
			intact = false
			break
		}
	}
	malloc.Free(block)

	logutil.Info("allocation round done",
		zap.Uint64("size", size),
		zap.Uint64("resize", resize),
		zap.Bool("intact", intact),
	)
	fmt.Fprintf(out, "allocated %d bytes, resized to %d bytes, first %d bytes intact: %t\n",
		size, resize, kept, intact)
}

func waitSignalToStop() {
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGTERM, syscall.SIGINT)
	<-sigchan
	logutil.Sync()
}
