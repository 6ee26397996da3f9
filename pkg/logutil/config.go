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

package logutil

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/matrixorigin/safemalloc/pkg/common/moerr"
)

// LogConfig log config
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Filename   string `toml:"filename"`
	MaxSize    int    `toml:"max-size"`
	MaxDays    int    `toml:"max-days"`
	MaxBackups int    `toml:"max-backups"`
	// StacktraceLevel is the lowest level that records a stacktrace,
	// default is fatal.
	StacktraceLevel string `toml:"stacktrace-level"`
}

// ZapSink is one output of the global logger.
type ZapSink struct {
	enc zapcore.Encoder
	out zapcore.WriteSyncer
}

func (cfg *LogConfig) getLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		panic(err)
	}
	return level
}

func (cfg *LogConfig) getStacktraceLevel() zapcore.Level {
	if cfg.StacktraceLevel == "" {
		return zapcore.FatalLevel
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.StacktraceLevel)); err != nil {
		panic(err)
	}
	return level
}

func (cfg *LogConfig) getSyncer() zapcore.WriteSyncer {
	if cfg.Filename == "" || cfg.Filename == "console" {
		return getConsoleSyncer()
	}

	if stat, err := os.Stat(cfg.Filename); err == nil {
		if stat.IsDir() {
			panic("log file can't be a directory")
		}
	}

	if cfg.MaxSize == 0 {
		cfg.MaxSize = 512
	}
	// add lumberjack logger
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Clean(cfg.Filename),
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
		Compress:   false,
	})
}

func (cfg *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(cfg.Format)
}

func (cfg *LogConfig) getSinks() (sinks []ZapSink) {
	encoder, syncer := cfg.getEncoder(), cfg.getSyncer()
	sinks = append(sinks, ZapSink{encoder, syncer})
	return
}

func (cfg *LogConfig) getOptions() []zap.Option {
	return []zap.Option{
		zap.AddStacktrace(cfg.getStacktraceLevel()),
		zap.AddCaller(),
	}
}

// Validate checks the level, format and stacktrace level without building
// a logger.
func (cfg *LogConfig) Validate() error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return moerr.NewBadConfigNoCtx("log level %q", cfg.Level)
	}
	if cfg.StacktraceLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.StacktraceLevel)); err != nil {
			return moerr.NewBadConfigNoCtx("log stacktrace level %q", cfg.StacktraceLevel)
		}
	}
	switch cfg.Format {
	case "", "console", "json":
	default:
		return moerr.NewBadConfigNoCtx("log format %q", cfg.Format)
	}
	return nil
}

// SetupMOLogger sets up the global logger for the process.
func SetupMOLogger(conf *LogConfig) {
	logger, err := initMOLogger(conf)
	if err != nil {
		panic(err)
	}
	replaceGlobalLogger(logger)
	fileSink.Store(conf.Filename != "" && conf.Filename != "console")
	Debugf("MO logger init, level=%s, log file=%s", conf.Level, conf.Filename)
}

func initMOLogger(cfg *LogConfig) (*zap.Logger, error) {
	return GetLoggerWithOptions(cfg.getLevel(), cfg.getSinks(), cfg.getOptions()...), nil
}

// GetLoggerWithOptions builds a logger that tees into every sink.
func GetLoggerWithOptions(level zapcore.LevelEnabler, sinks []ZapSink, opts ...zap.Option) *zap.Logger {
	cores := make([]zapcore.Core, 0, len(sinks))
	for _, sink := range sinks {
		cores = append(cores, zapcore.NewCore(sink.enc, sink.out, level))
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

func getConsoleSyncer() zapcore.WriteSyncer {
	syncer, _, err := zap.Open("stdout")
	if err != nil {
		panic(err)
	}
	return syncer
}

// console records look like: 2006/01/02 15:04:05.000000 -0700 INFO msg
var _defaultEncoderConfig = zapcore.EncoderConfig{
	TimeKey:          "time",
	LevelKey:         "level",
	NameKey:          "name",
	CallerKey:        "caller",
	MessageKey:       "msg",
	StacktraceKey:    "stacktrace",
	LineEnding:       zapcore.DefaultLineEnding,
	EncodeLevel:      zapcore.CapitalLevelEncoder,
	EncodeTime:       zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000 -0700"),
	EncodeDuration:   zapcore.StringDurationEncoder,
	EncodeCaller:     zapcore.ShortCallerEncoder,
	ConsoleSeparator: " ",
}

func getLoggerEncoder(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(_defaultEncoderConfig)
	case "console", "":
		return zapcore.NewConsoleEncoder(_defaultEncoderConfig)
	default:
		panic(moerr.NewInternalError(moerr.Context(), "unsupported log format: %s", format))
	}
}
