package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultInstrumentationName = "github.com/veldran/aotq"

// NewOTelTracer adapts an OpenTelemetry TracerProvider to the Tracer
// seam. A nil provider falls back to the process-global provider, so
// callers that configure OpenTelemetry elsewhere can pass nil.
func NewOTelTracer(provider trace.TracerProvider, instrumentationName string) Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	if instrumentationName == "" {
		instrumentationName = defaultInstrumentationName
	}
	return &otelTracer{tracer: provider.Tracer(instrumentationName)}
}

type otelTracer struct {
	tracer trace.Tracer
}

func (t *otelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	if t == nil || t.tracer == nil {
		return ctx, noopSpan{}
	}
	opts := make([]trace.SpanStartOption, 0, 1)
	if kv := convertAttrs(attrs); len(kv) > 0 {
		opts = append(opts, trace.WithAttributes(kv...))
	}
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, otelSpan{span: span}
}

// otelSpan marks the span failed on a non-nil error before ending it.
type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func convertAttrs(attrs []Attribute) []attribute.KeyValue {
	var out []attribute.KeyValue
	for _, attr := range attrs {
		if attr.Key == "" {
			continue
		}
		out = append(out, convertAttr(attr))
	}
	return out
}

func convertAttr(attr Attribute) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	case fmt.Stringer:
		return attribute.String(attr.Key, v.String())
	default:
		return attribute.String(attr.Key, fmt.Sprint(v))
	}
}
