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

// A very simple fault injection tool.
//
// A fault point is a name plus a frequency "start:end:skip:prob": the point
// fires on the start-th trigger, then every skip-th trigger up to end, each
// time with probability prob. Empty fields default to 1, forever, 1 and 1.0.
package fault

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
)

const (
	RETURN = iota
	GETCOUNT
	SLEEP
	PANIC
	ECHO
)

// Point is the configuration form of a fault point.
type Point struct {
	Name   string `toml:"name"`
	Freq   string `toml:"freq"`
	Action string `toml:"action"`
	IArg   int64  `toml:"iarg"`
	SArg   string `toml:"sarg"`
}

// faultEntry describes how we shall fail
type faultEntry struct {
	name             string
	cnt              int // count how many times we run into this
	start, end, skip int
	prob             float64 // probability of failure
	action           int
	iarg             int64 // int arg
	sarg             string
}

var (
	enabled atomic.Bool

	mu          sync.Mutex
	faultPoints map[string]*faultEntry
)

// Enable fault injection
func Enable() {
	mu.Lock()
	defer mu.Unlock()
	if faultPoints == nil {
		faultPoints = make(map[string]*faultEntry)
	}
	enabled.Store(true)
}

// Disable fault injection and drop every point.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	faultPoints = nil
	enabled.Store(false)
}

func IsEnabled() bool {
	return enabled.Load()
}

// TriggerFault runs into the named point. exist is true only when the
// point fired on this trigger.
func TriggerFault(name string) (iret int64, sret string, exist bool) {
	if !IsEnabled() {
		return
	}

	mu.Lock()
	e, ok := faultPoints[name]
	fired := false
	if ok {
		e.cnt += 1
		if e.cnt >= e.start && e.cnt <= e.end && (e.cnt-e.start)%e.skip == 0 {
			fired = e.prob == 1 || rand.Float64() < e.prob
		}
	}
	mu.Unlock()

	if !fired {
		return
	}
	exist = true
	iret, sret = e.do()
	return
}

func (e *faultEntry) do() (int64, string) {
	switch e.action {
	case RETURN: // no op
	case SLEEP:
		time.Sleep(time.Duration(e.iarg) * time.Millisecond)
	case GETCOUNT:
		if cnt, ok := Count(e.sarg); ok {
			return int64(cnt), ""
		}
	case PANIC:
		panic(e.sarg)
	case ECHO:
		return e.iarg, e.sarg
	}
	return 0, ""
}

// Count returns how many times the named point has been triggered.
func Count(name string) (int, bool) {
	mu.Lock()
	defer mu.Unlock()
	if e, ok := faultPoints[name]; ok {
		return e.cnt, true
	}
	return 0, false
}

// Add registers p.
func Add(p Point) error {
	return AddFaultPoint(p.Name, p.Freq, p.Action, p.IArg, p.SArg)
}

// Validate checks the frequency and action of p without registering it.
func Validate(p Point) error {
	_, err := newFaultEntry(p.Name, p.Freq, p.Action, p.IArg, p.SArg)
	return err
}

func AddFaultPoint(name string, freq string, action string, iarg int64, sarg string) error {
	if !IsEnabled() {
		return moerr.NewInternalErrorNoCtx("add fault point not enabled")
	}

	e, err := newFaultEntry(name, freq, action, iarg, sarg)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if faultPoints == nil {
		return moerr.NewInternalErrorNoCtx("add fault point not enabled")
	}
	if _, ok := faultPoints[name]; ok {
		return moerr.NewInternalErrorNoCtx("fault point %s already exists", name)
	}
	faultPoints[name] = e
	return nil
}

func newFaultEntry(name string, freq string, action string, iarg int64, sarg string) (*faultEntry, error) {
	var err error
	e := &faultEntry{
		name: name,
		iarg: iarg,
		sarg: sarg,
	}

	// freq is start:end:skip:prob
	sesp := strings.Split(freq, ":")
	if len(sesp) != 4 {
		return nil, moerr.NewInvalidArgNoCtx("fault point freq", freq)
	}

	if sesp[0] == "" {
		e.start = 1
	} else {
		e.start, err = strconv.Atoi(sesp[0])
		if err != nil || e.start <= 0 {
			return nil, moerr.NewInvalidArgNoCtx("fault point freq", freq)
		}
	}
	if sesp[1] == "" {
		e.end = math.MaxInt
	} else {
		e.end, err = strconv.Atoi(sesp[1])
		if err != nil || e.end < e.start {
			return nil, moerr.NewInvalidArgNoCtx("fault point freq", freq)
		}
	}
	if sesp[2] == "" {
		e.skip = 1
	} else {
		e.skip, err = strconv.Atoi(sesp[2])
		if err != nil || e.skip <= 0 {
			return nil, moerr.NewInvalidArgNoCtx("fault point freq", freq)
		}
	}
	if sesp[3] == "" {
		e.prob = 1.0
	} else {
		e.prob, err = strconv.ParseFloat(sesp[3], 64)
		if err != nil || e.prob <= 0 || e.prob > 1 {
			return nil, moerr.NewInvalidArgNoCtx("fault point freq", freq)
		}
	}

	switch strings.ToUpper(action) {
	case "RETURN", "":
		e.action = RETURN
	case "GETCOUNT":
		e.action = GETCOUNT
	case "SLEEP":
		e.action = SLEEP
	case "PANIC":
		e.action = PANIC
	case "ECHO":
		e.action = ECHO
	default:
		return nil, moerr.NewInvalidArgNoCtx("fault action", action)
	}
	return e, nil
}

func RemoveFaultPoint(name string) error {
	if !IsEnabled() {
		return moerr.NewInternalErrorNoCtx("remove fault point not enabled")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := faultPoints[name]; !ok {
		return moerr.NewInvalidInputNoCtx("invalid injection point %s", name)
	}
	delete(faultPoints, name)
	return nil
}
