// Copyright 2025 The Kube Resource Orchestrator Authors
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

package view

import (
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/lmittmann/tint"
)

type LogLevel int

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// Logr returns a logr.Logger writing through the same handler. Its
	// V(1) messages are emitted at debug level.
	Logr() logr.Logger
}

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelSilent
)

// silent is above every level slog defines.
const silent = slog.Level(100)

func (l LogLevel) toSlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return silent
	}
}

// slogLogger implements Logger on top of any slog handler.
type slogLogger struct {
	logger *slog.Logger
}

var _ Logger = (*slogLogger)(nil)

func rewriteLogLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) != 0 {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}

	var levelText string
	switch {
	case level < slog.LevelInfo:
		// logr verbosity levels land between debug and info.
		levelText = "DEBUG"
	case level == slog.LevelInfo:
		levelText = color.GreenString("INFO")
	case level == slog.LevelWarn:
		levelText = color.YellowString("WARN")
	case level >= slog.LevelError:
		levelText = color.RedString("ERROR")
	default:
		levelText = level.String()
	}
	a.Value = slog.StringValue(levelText)
	return a
}

func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *slogLogger) Logr() logr.Logger {
	return logr.FromSlogHandler(l.logger.Handler())
}

// NewHumanLogger creates a human-readable slog logger
func NewHumanLogger(w io.Writer, level LogLevel) Logger {
	opts := &tint.Options{
		Level:       level.toSlogLevel(),
		TimeFormat:  time.DateTime,
		ReplaceAttr: rewriteLogLevel,
		NoColor:     color.NoColor,
	}
	return &slogLogger{logger: slog.New(tint.NewHandler(w, opts))}
}

// NewJSONLogger creates a JSON-structured slog logger
func NewJSONLogger(w io.Writer, level LogLevel) Logger {
	opts := &slog.HandlerOptions{
		Level: level.toSlogLevel(),
	}
	return &slogLogger{logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// NewNopLogger creates a no-op logger that discards all output
func NewNopLogger() Logger {
	opts := &slog.HandlerOptions{
		Level: silent,
	}
	return &slogLogger{logger: slog.New(slog.NewJSONHandler(io.Discard, opts))}
}
