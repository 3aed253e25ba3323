package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gymdesk/internal/adapters/http/perf"
)

// SQLDB is the database interface SQLiteKV needs.
// Both *sql.DB and *TimedDB satisfy it, so TimedDB can wrap either.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// DefaultSlowQuery is the threshold above which a query is logged at WARN.
const DefaultSlowQuery = 50 * time.Millisecond

// slowQueryThreshold reads GYMDESK_SLOW_QUERY_MS, falling back to DefaultSlowQuery.
func slowQueryThreshold() time.Duration {
	if n, err := strconv.Atoi(os.Getenv("GYMDESK_SLOW_QUERY_MS")); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return DefaultSlowQuery
}

// TimedDB wraps a SQLDB to log slow statements, record them for the perf
// dashboard and trace each one as a client span.
type TimedDB struct {
	db        SQLDB
	collector *perf.Collector
	threshold time.Duration
	tracer    trace.Tracer
}

// Compile-time check that *TimedDB satisfies SQLDB.
var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps db with timing instrumentation. collector may be nil.
// PRE: db is a valid database connection
func NewTimedDB(db SQLDB, collector *perf.Collector) *TimedDB {
	return &TimedDB{
		db:        db,
		collector: collector,
		threshold: slowQueryThreshold(),
		tracer:    otel.Tracer("gymdesk/storage"),
	}
}

// statementLabel names a query by its verb and table, e.g. "INSERT kv".
// Arguments never appear in the label so it is safe to log.
func statementLabel(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "?"
	}
	verb := strings.ToUpper(fields[0])
	for i, f := range fields {
		switch strings.ToUpper(f) {
		case "FROM", "INTO", "UPDATE":
			if i+1 < len(fields) {
				return verb + " " + strings.Trim(fields[i+1], "(")
			}
		}
	}
	return verb
}

// start opens the span for one statement.
func (t *TimedDB) start(ctx context.Context, op, query string) (context.Context, trace.Span, string, time.Time) {
	label := op + " " + statementLabel(query)
	ctx, span := t.tracer.Start(ctx, "sqlite "+label,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "sqlite")))
	return ctx, span, label, time.Now()
}

// finish ends the span, logs and records the statement.
func (t *TimedDB) finish(span trace.Span, label string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	durationMs := float64(elapsed.Microseconds()) / 1000.0
	if elapsed >= t.threshold {
		slog.Warn("slow_query", "op", label, "duration_ms", durationMs, "error", err)
	} else {
		slog.Debug("query", "op", label, "duration_ms", durationMs)
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindQuery,
			Path:       label,
			DurationMs: durationMs,
			Timestamp:  start,
			Failed:     err != nil,
		})
	}
}

// ExecContext runs a statement with timing.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span, label, start := t.start(ctx, "exec", query)
	result, err := t.db.ExecContext(ctx, query, args...)
	t.finish(span, label, start, err)
	return result, err
}

// QueryContext runs a query with timing. Iterating the rows is not timed.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span, label, start := t.start(ctx, "query", query)
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.finish(span, label, start, err)
	return rows, err
}

// QueryRowContext runs a single-row query with timing.
// Row errors surface on Scan, so the entry is never marked failed here.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, span, label, start := t.start(ctx, "query_row", query)
	row := t.db.QueryRowContext(ctx, query, args...)
	t.finish(span, label, start, nil)
	return row
}
