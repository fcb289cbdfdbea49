// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the kernel's structured logging sink: a
// severity-gated, JSON-or-text log/slog logger with optional rotation.
// The syscall surface, the FAT32 layers, the block cache, the frame
// arena, the kernel and the boot command log through here rather than
// through fmt.Printf so that severity is always attached; the boot
// command puts its boot-session id into its own start and exit lines.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, ordered from most to least verbose. TRACE sits below
// slog's own LevelDebug; OFF suppresses everything.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

const (
	levelTrace slog.Level = slog.LevelDebug - 4
	levelOff   slog.Level = slog.LevelError + 4
)

var severityToLevel = map[string]slog.Level{
	TRACE:   levelTrace,
	DEBUG:   slog.LevelDebug,
	INFO:    slog.LevelInfo,
	WARNING: slog.LevelWarn,
	ERROR:   slog.LevelError,
	OFF:     levelOff,
}

var levelNames = map[slog.Leveler]string{
	levelTrace:     TRACE,
	slog.LevelWarn: WARNING,
	levelOff:       OFF,
}

// loggerFactory builds the process-wide slog.Logger according to the
// rationalized boot config. format is either "text" or "json".
type loggerFactory struct {
	format string
}

var defaultLoggerFactory = &loggerFactory{format: "text"}

var defaultLogger = slog.New(
	defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, new(slog.LevelVar), ""),
)

// Config describes how the logger should be initialized at boot.
type Config struct {
	// Severity is one of TRACE, DEBUG, INFO, WARNING, ERROR, OFF.
	Severity string
	// Format is "text" or "json".
	Format string
	// FilePath, if non-empty, routes output through lumberjack for
	// rotation instead of stderr.
	FilePath        string
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

// Init (re)configures the default logger according to cfg. Safe to call
// more than once; later calls replace the handler.
func Init(cfg Config) {
	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxFileSizeMB,
			MaxBackups: cfg.BackupFileCount,
			Compress:   cfg.Compress,
		}
	}

	format := cfg.Format
	if format == "" {
		format = "text"
	}
	defaultLoggerFactory.format = format

	programLevel := new(slog.LevelVar)
	setLoggingLevel(cfg.Severity, programLevel)

	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	l, ok := severityToLevel[level]
	if !ok {
		l = slog.LevelInfo
	}
	programLevel.Set(l)
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			lvl := a.Value.Any().(slog.Level)
			a.Key = "severity"
			if name, ok := levelNames[lvl]; ok {
				a.Value = slog.StringValue(name)
			} else {
				a.Value = slog.StringValue(lvl.String())
			}
		case slog.MessageKey:
			a.Key = "message"
			a.Value = slog.StringValue(prefix + a.Value.String())
		case slog.TimeKey:
			if f.format == "text" {
				a.Value = slog.StringValue(a.Value.Time().Format("2006/01/02 15:04:05.000000"))
			}
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replace}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func log(ctx context.Context, level slog.Level, format string, v ...interface{}) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	msg := format
	if len(v) > 0 {
		msg = fmt.Sprintf(format, v...)
	}
	defaultLogger.Log(ctx, level, msg)
}

func Tracef(format string, v ...interface{}) { log(context.Background(), levelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { log(context.Background(), slog.LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { log(context.Background(), slog.LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { log(context.Background(), slog.LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { log(context.Background(), slog.LevelError, format, v...) }

// Panicf logs at ERROR severity and then panics, matching spec's policy
// that panics are reserved for invariant violations (lock-order
// inversion, missing block, FAT corruption) and never for expected
// runtime conditions.
func Panicf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	Errorf("%s", msg)
	panic(msg)
}

// now is overridable in tests that want deterministic timestamps in
// structured log fields outside of slog's own time attribute.
var now = time.Now
