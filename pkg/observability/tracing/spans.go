// Package tracing provides OpenTelemetry tracing for checklist runs and adapter calls.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation represents a traced operation type.
type SpanOperation string

const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBInsert SpanOperation = "db.insert"
	SpanOperationDBUpdate SpanOperation = "db.update"
	SpanOperationDBDelete SpanOperation = "db.delete"
	SpanOperationDBAdmin  SpanOperation = "db.admin"
)

// Instrumentation scope names.
const (
	ScopeChecker  = "github.com/nimburion/docprobe/checker"
	ScopeDatabase = "github.com/nimburion/docprobe/database"
)

// StartDatabaseSpan creates a client span for a document-store operation.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer(ScopeDatabase)

	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.table != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.table)
	}

	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	table      string
	attributes []attribute.KeyValue
}

// WithDBTable sets the collection or table name.
func WithDBTable(table string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.table = table
		opts.attributes = append(opts.attributes, attribute.String("db.table", table))
	}
}

// WithDBSystem sets the database system (e.g. "mongodb", "dynamodb").
func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBName sets the database name.
func WithDBName(name string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		if name == "" {
			return
		}
		opts.attributes = append(opts.attributes, attribute.String("db.name", name))
	}
}

// StartCheckSpan creates an internal span around one checklist entry.
// A nil tracer falls back to the global provider.
func StartCheckSpan(ctx context.Context, tracer trace.Tracer, index int, name string) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = otel.Tracer(ScopeChecker)
	}
	ctx, span := tracer.Start(ctx, "CHECK "+name, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("check.name", name),
		attribute.Int("check.index", index),
	)
	return ctx, span
}

// RecordCheckOutcome annotates a check span with its assertion counts.
func RecordCheckOutcome(span trace.Span, passed, failed int) {
	span.SetAttributes(
		attribute.Int("check.passed", passed),
		attribute.Int("check.failed", failed),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d assertion(s) failed", failed))
		return
	}
	span.SetStatus(codes.Ok, "")
}

// RecordError records err on span and marks it failed. A nil err is a no-op.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
