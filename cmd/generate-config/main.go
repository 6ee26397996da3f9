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

package main

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/matrixorigin/safemalloc/pkg/common/fatal"
	"github.com/matrixorigin/safemalloc/pkg/config"
)

var output = pflag.StringP("output", "o", "", "file to write the default configuration to, stdout when empty")

func main() {
	pflag.Parse()

	out := io.Writer(os.Stdout)
	if *output != "" {
		file, err := os.OpenFile(*output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			fatal.Fatalf("open %s: %v", *output, err)
		}
		defer file.Close()
		out = file
	}

	if err := generate(out, config.NewConfig()); err != nil {
		fatal.Fatalf("generate configuration failed: %v", err)
	}
}

func generate(w io.Writer, cfg *config.Config) error {
	if _, err := io.WriteString(w, "# mo-malloc configuration, generated with defaults\n\n"); err != nil {
		return err
	}
	return toml.NewEncoder(w).Encode(cfg)
}
