package pg

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/veldran/aotq/observability/tracing"
)

// sqlAttrLimit caps the recorded statement text so long IN expansions do
// not bloat span payloads.
const sqlAttrLimit = 512

func newPGXTracer(tracer tracing.Tracer) pgx.QueryTracer {
	if tracer == nil {
		return nil
	}
	return &pgxTracer{tracer: tracer}
}

// pgxTracer adapts the tracing seam to pgx's QueryTracer callbacks. The
// span started in TraceQueryStart travels to TraceQueryEnd through the
// returned context.
type pgxTracer struct {
	tracer tracing.Tracer
}

type spanCtxKey struct{}

func (t *pgxTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if t == nil || t.tracer == nil {
		return ctx
	}
	ctx, span := t.tracer.Start(ctx, "aotq.pg.query",
		tracing.String("sql", clipSQL(data.SQL)),
		tracing.String("verb", statementVerb(data.SQL)),
		tracing.Int("arg_count", len(data.Args)),
	)
	return context.WithValue(ctx, spanCtxKey{}, span)
}

func (t *pgxTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if span, ok := ctx.Value(spanCtxKey{}).(tracing.Span); ok && span != nil {
		span.End(data.Err)
	}
}

func clipSQL(sql string) string {
	if len(sql) <= sqlAttrLimit {
		return sql
	}
	return sql[:sqlAttrLimit]
}

// statementVerb reports the leading SQL keyword, lowercased, for span
// grouping.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
