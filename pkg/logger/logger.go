// Copyright 2026 Talksy Authors
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

// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var defaultLogger *slog.Logger

const (
	colorReset = "\033[0m"
	colorGray  = "\033[90m"
	colorCyan  = "\033[36m"
	colorAmber = "\033[33m"
	colorRed   = "\033[31m"
)

// ParseLevel converts a level name to slog.Level.
// Valid levels: debug, info, warn, error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

func levelTag(level slog.Level, color bool) string {
	tag := strings.ToUpper(level.String())
	if tag == "WARNING" {
		tag = "WARN"
	}
	if !color {
		return tag
	}
	var c string
	switch {
	case level >= slog.LevelError:
		c = colorRed
	case level >= slog.LevelWarn:
		c = colorAmber
	case level >= slog.LevelInfo:
		c = colorCyan
	default:
		c = colorGray
	}
	return c + tag + colorReset
}

// consoleHandler writes "LEVEL message key=value" lines, with an optional
// timestamp prefix for the verbose format and ANSI level colors when the
// destination is a terminal. Writes are serialized so interleaved records
// from concurrent connections stay whole.
type consoleHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Level
	color bool
	stamp bool
	attrs []slog.Attr
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var line strings.Builder

	if h.stamp && !record.Time.IsZero() {
		line.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}
	line.WriteString(levelTag(record.Level, h.color))
	line.WriteByte(' ')
	line.WriteString(record.Message)

	writeAttr := func(a slog.Attr) {
		line.WriteByte(' ')
		line.WriteString(a.Key)
		line.WriteByte('=')
		line.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup is a no-op; nothing in this codebase logs grouped attrs.
func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

func isTerminal(file *os.File) bool {
	info, err := file.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Init installs the process-wide logger. The "simple" format prints level
// and message only, "verbose" adds a timestamp, and anything else falls
// back to slog's standard text handler.
func Init(level slog.Level, output *os.File, format string) {
	var handler slog.Handler
	switch format {
	case "simple", "":
		handler = &consoleHandler{mu: &sync.Mutex{}, out: output, level: level, color: isTerminal(output)}
	case "verbose":
		handler = &consoleHandler{mu: &sync.Mutex{}, out: output, level: level, color: isTerminal(output), stamp: true}
	default:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// OpenLogFile opens path for appending, creating it if absent. The second
// return value closes the file.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

// GetLogger returns the configured logger, installing the default simple
// stderr logger on first use.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
