// Package tracing is a thin span abstraction so the generator and the
// execution runtime can emit traces without binding callers to a
// particular backend. The otel adapter is the only real implementation.
package tracing

import "context"

// Attribute represents a key/value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

// Span represents an in-flight tracing span.
type Span interface {
	End(err error)
}

// Tracer starts spans for tracing operations.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// NoopTracer discards all tracing events.
type NoopTracer struct{}

func (NoopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// String attribute helper.
func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

// Int attribute helper.
func Int(key string, value int) Attribute { return Attribute{Key: key, Value: value} }

// Bool attribute helper.
func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }
