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

package fatal

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/safemalloc/pkg/logutil"
)

type exitSentinel int

func catchExit(t *testing.T, fn func()) (code int) {
	t.Helper()
	defer func() {
		r := recover()
		sentinel, ok := r.(exitSentinel)
		require.True(t, ok, "expected exit, got %v", r)
		code = int(sentinel)
	}()
	fn()
	t.Fatal("function returned without exit")
	return
}

func panicExit(code int) {
	panic(exitSentinel(code))
}

func TestReporter_Fatalf(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, panicExit)

	code := catchExit(t, func() {
		r.Fatalf("value=%d", 42)
	})
	require.Equal(t, ExitCode, code)
	require.Equal(t, "fatal: value=42\n", buf.String())
}

func TestReporter_noArgs(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, panicExit)

	code := catchExit(t, func() {
		r.Fatalf("memory exhausted")
	})
	require.Equal(t, 1, code)
	require.Equal(t, "fatal: memory exhausted\n", buf.String())
}

func TestFatalf_stubbedExit(t *testing.T) {
	rd, wr, err := os.Pipe()
	require.NoError(t, err)
	defer rd.Close()

	stubs := gostub.Stub(&osExit, panicExit)
	defer stubs.Reset()
	stubs.Stub(&os.Stderr, wr)

	code := catchExit(t, func() {
		Fatalf("%s: %q", "open", "mo.toml")
	})
	require.NoError(t, wr.Close())
	require.Equal(t, 1, code)

	out, err := io.ReadAll(rd)
	require.NoError(t, err)
	require.Equal(t, "fatal: open: \"mo.toml\"\n", string(out))
}

func TestReporter_nilExitUsesHook(t *testing.T) {
	var got int
	stubs := gostub.Stub(&osExit, func(code int) {
		got = code
	})
	defer stubs.Reset()

	var buf bytes.Buffer
	New(&buf, nil).Fatalf("x")
	require.Equal(t, 1, got)
	require.Equal(t, "fatal: x\n", buf.String())
}

const helperEnv = "SAFEMALLOC_FATAL_HELPER"

func TestFatalf_processExit(t *testing.T) {
	if os.Getenv(helperEnv) == "1" {
		Fatalf("value=%d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFatalf_processExit$")
	cmd.Env = append(os.Environ(), helperEnv+"=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok, "expected exit error, got %v", err)
	require.Equal(t, 1, exitErr.ExitCode())
	require.Equal(t, "fatal: value=42\n", stderr.String())
	// the default console logger must not echo the report on stdout
	require.Empty(t, stdout.String())
}

func TestReporter_fileSink(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "fatal.log")
	logutil.SetupMOLogger(&logutil.LogConfig{
		Level:    "info",
		Format:   "json",
		Filename: filename,
	})
	defer logutil.SetupMOLogger(&logutil.LogConfig{
		Level:  "info",
		Format: "console",
	})

	var buf bytes.Buffer
	code := catchExit(t, func() {
		New(&buf, panicExit).Fatalf("value=%d", 7)
	})
	require.Equal(t, 1, code)
	require.Equal(t, "fatal: value=7\n", buf.String())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"fatal error"`)
	require.Contains(t, string(data), `"message":"value=7"`)
	require.Contains(t, string(data), `"level":"ERROR"`)
}
