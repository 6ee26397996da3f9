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
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/matrixorigin/safemalloc/pkg/logutil"
	v2 "github.com/matrixorigin/safemalloc/pkg/util/metric/v2"
)

var (
	httpListenAddr = pflag.String("debug-http", "", "http server listen address for /metrics and /debug/pprof, keeps the process running until SIGINT/SIGTERM")
)

func init() {
	http.Handle("/metrics", promhttp.HandlerFor(v2.GetPrometheusGatherer(), promhttp.HandlerOpts{}))
}

func startDebugServer(addr string) {
	logutil.Info("debug http server started", zap.String("addr", addr))
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logutil.Error("debug http server stopped", zap.Error(err))
		}
	}()
}
