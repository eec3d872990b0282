// Package logging wraps slog.Logger the way the teacher's common/logger
// does: tint for human consoles, JSON for production, plus a correlation-id
// helper used at the HTTP boundary for Internal errors (SPEC_FULL.md section 7).
package logging

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

type ctxKey int

const correlationIDKey ctxKey = iota

// Logger wraps slog.Logger with Relay's contextual fields.
type Logger struct {
	*slog.Logger
}

// New creates a logger for the given level ("debug"|"info"|"warn"|"error")
// and format ("json"|"text").
func New(level, format string) *Logger {
	logLevel := parseLevel(level)

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithFields returns a logger carrying the given key/value fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// WithCorrelationID returns a logger tagged with the given correlation id,
// the id surfaced to HTTP clients on Internal errors.
func (l *Logger) WithCorrelationID(id string) *Logger {
	return &Logger{Logger: l.With("correlation_id", id)}
}

// Error logs an error with a captured stack trace, as the teacher's
// Logger.Error does.
func (l *Logger) Error(msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.Error(msg, args...)
}

// ContextWithCorrelationID stashes a correlation id on ctx for handlers
// downstream of the HTTP boundary to pick up.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext retrieves the id stashed by
// ContextWithCorrelationID, or "" if none was set.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
