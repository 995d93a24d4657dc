package logger

import (
	"context"
)

// Logger is the structured logging contract used across docprobe.
// All log methods accept a message string followed by key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that adds the given key-value pairs to every entry.
	With(args ...any) Logger

	// WithContext returns a child logger carrying the run ID stored in ctx, if any.
	WithContext(ctx context.Context) Logger
}

type runIDKey struct{}

// ContextWithRunID stores a run identifier that WithContext attaches to log entries.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if runID, ok := ctx.Value(runIDKey{}).(string); ok {
		return runID
	}
	return ""
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)                  {}
func (nopLogger) Info(string, ...any)                   {}
func (nopLogger) Warn(string, ...any)                   {}
func (nopLogger) Error(string, ...any)                  {}
func (n nopLogger) With(...any) Logger                  { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
