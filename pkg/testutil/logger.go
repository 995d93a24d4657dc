package testutil

import (
	"context"
	"maps"
	"sync"

	"github.com/nimburion/docprobe/pkg/observability/logger"
)

// LogEntry is one record captured by RecordingLogger.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// RecordingLogger captures log entries for assertions. Loggers derived with With share
// the parent's records and carry its fields.
type RecordingLogger struct {
	mu     *sync.Mutex
	logs   *[]LogEntry
	fields map[string]any
}

// NewRecordingLogger creates an empty recorder.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{mu: &sync.Mutex{}, logs: &[]LogEntry{}, fields: map[string]any{}}
}

func (r *RecordingLogger) Debug(msg string, args ...any) { r.record("debug", msg, args) }
func (r *RecordingLogger) Info(msg string, args ...any)  { r.record("info", msg, args) }
func (r *RecordingLogger) Warn(msg string, args ...any)  { r.record("warn", msg, args) }
func (r *RecordingLogger) Error(msg string, args ...any) { r.record("error", msg, args) }

// With returns a logger that adds args to every entry.
func (r *RecordingLogger) With(args ...any) logger.Logger {
	fields := maps.Clone(r.fields)
	maps.Copy(fields, argsToMap(args))
	return &RecordingLogger{mu: r.mu, logs: r.logs, fields: fields}
}

// WithContext returns the same logger.
func (r *RecordingLogger) WithContext(context.Context) logger.Logger {
	return r
}

// Entries returns a copy of everything recorded so far.
func (r *RecordingLogger) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogEntry(nil), *r.logs...)
}

// Find returns the first entry with msg at level.
func (r *RecordingLogger) Find(level, msg string) (LogEntry, bool) {
	for _, e := range r.Entries() {
		if e.Level == level && e.Msg == msg {
			return e, true
		}
	}
	return LogEntry{}, false
}

func (r *RecordingLogger) record(level, msg string, args []any) {
	fields := maps.Clone(r.fields)
	maps.Copy(fields, argsToMap(args))
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.logs = append(*r.logs, LogEntry{Level: level, Msg: msg, Fields: fields})
}

func argsToMap(args []any) map[string]any {
	fields := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}
