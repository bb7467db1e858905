package telemetry

import (
	"context"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
)

// AgeReader exposes the metadata the data-age monitor samples. Oldest and
// newest return nil exactly when the store holds no records.
type AgeReader interface {
	OldestTimestamp(ctx context.Context) (*int64, error)
	NewestTimestamp(ctx context.Context) (*int64, error)
	Count(ctx context.Context) (uint64, error)
}

// TTLUpdater reconfigures the backend retention for the tables a store owns.
type TTLUpdater interface {
	UpdateTTL(ctx context.Context, days int) error
}

// SQLQuerier executes a parsed Select against the tables a store owns.
type SQLQuerier interface {
	QuerySQL(ctx context.Context, sel *query.Select) (*query.Result, error)
}

// LogStore persists and queries canonical log records.
type LogStore interface {
	AgeReader
	TTLUpdater
	SQLQuerier
	Insert(ctx context.Context, record *LogRecord) error
	InsertBatch(ctx context.Context, records []*LogRecord) error
	Query(ctx context.Context, filter LogFilter) ([]*LogRecord, uint64, error)
}

// MetricStore persists and queries canonical metric samples.
type MetricStore interface {
	AgeReader
	TTLUpdater
	SQLQuerier
	Insert(ctx context.Context, metric *Metric) error
	InsertBatch(ctx context.Context, metrics []*Metric) error
	Query(ctx context.Context, filter MetricFilter) ([]*Metric, uint64, error)
}

// TraceStore persists spans and serves derived trace views.
type TraceStore interface {
	AgeReader
	TTLUpdater
	SQLQuerier
	Insert(ctx context.Context, span *Span) error
	InsertBatch(ctx context.Context, spans []*Span) error
	Query(ctx context.Context, filter TraceFilter) ([]*Span, uint64, error)
	GetTrace(ctx context.Context, traceID string) (*Trace, error)
}

// Stores bundles the three capability sets behind one handle for the app
// state and the query dispatcher.
type Stores struct {
	Logs    LogStore
	Metrics MetricStore
	Traces  TraceStore
}
