// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package logging provides a structured logging interface compatible with slog
// levels and common logging utilities for the MindGauge application.
package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
)

// Common logging levels for structured logging.
const (
	LevelTrace = slog.Level(-8) // most verbose
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError // least verbose
)

// Logger defines a generic logging interface following slog style with log levels.
// It provides structured logging capabilities for both regular messages and error handling.
type Logger interface {
	// Message logs a message at the specified level with optional format arguments.
	Message(ctx context.Context, level slog.Level, msg string, args ...any)

	// Error logs an error at the specified level with optional format arguments.
	Error(ctx context.Context, level slog.Level, err error, msg string, args ...any)

	// WithContext returns a new Logger that appends the specified context to the existing prefix.
	// This allows for hierarchical logging where components can add their context
	// without affecting the original logger instance. Each call extends the prefix chain.
	WithContext(context string) Logger
}

// NewZerologAdapter returns a Logger backed by the given zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) Logger {
	return &zerologAdapter{logger: logger}
}

type zerologAdapter struct {
	logger zerolog.Logger
	prefix string
}

func (l *zerologAdapter) Message(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.getEvent(level).Msg(l.prefix + fmt.Sprintf(msg, args...))
}

func (l *zerologAdapter) Error(ctx context.Context, level slog.Level, err error, msg string, args ...any) {
	l.getEvent(level).Err(err).Msg(l.prefix + fmt.Sprintf(msg, args...))
}

func (l *zerologAdapter) WithContext(context string) Logger {
	return &zerologAdapter{
		logger: l.logger,
		prefix: l.prefix + context,
	}
}

// getEvent returns a zerolog event for the given slog level.
func (l *zerologAdapter) getEvent(level slog.Level) *zerolog.Event {
	switch {
	case level < LevelDebug:
		return l.logger.Trace()
	case level < LevelInfo:
		return l.logger.Debug()
	case level < LevelWarn:
		return l.logger.Info()
	case level < LevelError:
		return l.logger.Warn()
	default:
		return l.logger.Error()
	}
}
