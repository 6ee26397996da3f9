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

// Package fatal reports unrecoverable errors and terminates the process.
//
// A report is a single line "fatal: <message>" on the diagnostic stream
// followed by exit status 1. When logutil writes to a log file the message
// is logged there first, so the file keeps a record of why the process went
// away. Console logging is skipped: stdout is the program's own output.
package fatal

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/matrixorigin/safemalloc/pkg/logutil"
)

const (
	prefix = "fatal: "

	// ExitCode is the process status of every fatal report.
	ExitCode = 1
)

var osExit = os.Exit

// Reporter writes fatal reports to w and terminates through exit.
type Reporter struct {
	w    io.Writer
	exit func(int)
}

// New returns a Reporter. A nil exit falls back to the package exit hook.
func New(w io.Writer, exit func(int)) *Reporter {
	return &Reporter{
		w:    w,
		exit: exit,
	}
}

// Fatalf formats the message, writes it to the reporter's stream and
// exits. It does not return unless the exit function does.
func (r *Reporter) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	logutil.Diagnose("fatal error", zap.String("message", msg))
	logutil.Sync()

	_, _ = io.WriteString(r.w, prefix+msg+"\n")

	if r.exit != nil {
		r.exit(ExitCode)
		return
	}
	osExit(ExitCode)
}

// Fatalf reports to stderr and exits the process with status 1.
func Fatalf(format string, args ...any) {
	New(os.Stderr, nil).Fatalf(format, args...)
}
