package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/veldran/aotq/observability/tracing"
	"github.com/veldran/aotq/pg"
)

// Executor runs prepared statements against a connection pool, emitting a
// span and a correlated debug log line per statement.
type Executor struct {
	pool   pg.Pool
	log    *zap.Logger
	tracer tracing.Tracer
}

// NewExecutor creates an Executor. A nil logger or tracer degrades to the
// respective no-op.
func NewExecutor(pool pg.Pool, log *zap.Logger, tracer tracing.Tracer) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if tracer == nil {
		tracer = tracing.NoopTracer{}
	}
	return &Executor{pool: pool, log: log, tracer: tracer}
}

// Query runs a statement that returns rows. The caller owns the returned
// rows and must close them.
func (e *Executor) Query(ctx context.Context, stmt Statement) (pgx.Rows, error) {
	ctx, span, id := e.begin(ctx, "query", stmt)
	rows, err := e.pool.Query(ctx, stmt.SQL, stmt.Args...)
	span.End(err)
	if err != nil {
		e.log.Debug("query failed", zap.String("correlation_id", id), zap.Error(err))
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return rows, nil
}

// Count runs a count statement and returns the single int64 it yields.
func (e *Executor) Count(ctx context.Context, stmt Statement) (int64, error) {
	ctx, span, id := e.begin(ctx, "count", stmt)
	var total int64
	err := e.pool.QueryRow(ctx, stmt.SQL, stmt.Args...).Scan(&total)
	span.End(err)
	if err != nil {
		e.log.Debug("count failed", zap.String("correlation_id", id), zap.Error(err))
		return 0, fmt.Errorf("execute count query: %w", err)
	}
	return total, nil
}

// Exists runs an existence statement. Both boolean projections and
// count-shaped projections are accepted.
func (e *Executor) Exists(ctx context.Context, stmt Statement) (bool, error) {
	ctx, span, id := e.begin(ctx, "exists", stmt)
	rows, err := e.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		span.End(err)
		e.log.Debug("exists failed", zap.String("correlation_id", id), zap.Error(err))
		return false, fmt.Errorf("execute exists query: %w", err)
	}
	defer rows.Close()
	found := rows.Next()
	err = rows.Err()
	span.End(err)
	if err != nil {
		return false, fmt.Errorf("execute exists query: %w", err)
	}
	return found, nil
}

// Exec runs a modifying statement and returns the affected row count.
func (e *Executor) Exec(ctx context.Context, stmt Statement) (int64, error) {
	ctx, span, id := e.begin(ctx, "exec", stmt)
	tag, err := e.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	span.End(err)
	if err != nil {
		e.log.Debug("exec failed", zap.String("correlation_id", id), zap.Error(err))
		return 0, fmt.Errorf("execute statement: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (e *Executor) begin(ctx context.Context, kind string, stmt Statement) (context.Context, tracing.Span, string) {
	id := CorrelationID()
	ctx, span := e.tracer.Start(ctx, "aotq.execute",
		tracing.String("kind", kind),
		tracing.String("correlation_id", id),
		tracing.Int("arg_count", len(stmt.Args)))
	e.log.Debug("executing statement",
		zap.String("kind", kind),
		zap.String("correlation_id", id),
		zap.String("sql", stmt.SQL),
		zap.Int("args", len(stmt.Args)))
	return ctx, span, id
}

// CorrelationID returns a time-ordered UUID for log and span correlation,
// falling back to a random UUID when the monotonic source fails.
func CorrelationID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
