package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
)

// metricsRepository implements telemetry.MetricStore on ClickHouse.
type metricsRepository struct {
	db driver.Conn
}

// NewMetricsRepository creates the column-store metric backend.
func NewMetricsRepository(db driver.Conn) telemetry.MetricStore {
	return &metricsRepository{db: db}
}

func (r *metricsRepository) Insert(ctx context.Context, metric *telemetry.Metric) error {
	return r.InsertBatch(ctx, []*telemetry.Metric{metric})
}

func (r *metricsRepository) InsertBatch(ctx context.Context, metrics []*telemetry.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	batch, err := r.db.PrepareBatch(ctx, `
		INSERT INTO metrics (
			timestamp, name, metric_type, value, bucket_bounds, bucket_counts, labels, service
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, metric := range metrics {
		labels := metric.Labels
		if labels == nil {
			labels = map[string]string{}
		}
		bounds := metric.BucketBounds
		if bounds == nil {
			bounds = []float64{}
		}
		counts := metric.BucketCounts
		if counts == nil {
			counts = []uint64{}
		}
		err = batch.Append(
			metric.Timestamp,
			metric.Name,
			string(metric.MetricType),
			metric.Value,
			bounds,
			counts,
			labels,
			metric.Service,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	return batch.Send()
}

func (r *metricsRepository) Query(ctx context.Context, filter telemetry.MetricFilter) ([]*telemetry.Metric, uint64, error) {
	where, args := buildMetricWhere(filter)

	limit := filter.Limit
	if limit <= 0 || limit > int(query.MaxLimit) {
		limit = int(query.MaxLimit)
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	stmt := fmt.Sprintf(`
		SELECT timestamp, name, metric_type, value, bucket_bounds, bucket_counts, labels, service
		FROM metrics %s
		ORDER BY timestamp DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]*telemetry.Metric, 0)
	for rows.Next() {
		var (
			m          telemetry.Metric
			metricType string
			bounds     []float64
			counts     []uint64
			labels     map[string]string
		)
		if err := rows.Scan(&m.Timestamp, &m.Name, &metricType, &m.Value,
			&bounds, &counts, &labels, &m.Service); err != nil {
			return nil, 0, fmt.Errorf("scan metric: %w", err)
		}
		m.MetricType = telemetry.MetricType(metricType)
		if len(bounds) > 0 {
			m.BucketBounds = bounds
		}
		if len(counts) > 0 {
			m.BucketCounts = counts
		}
		m.Labels = labels
		metrics = append(metrics, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total uint64
	countStmt := "SELECT count() FROM metrics " + where
	if err := r.db.QueryRow(ctx, countStmt, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count metrics: %w", err)
	}

	return metrics, total, nil
}

func buildMetricWhere(filter telemetry.MetricFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.StartTime != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, *filter.EndTime)
	}
	if filter.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Type != "" {
		clauses = append(clauses, "metric_type = ?")
		args = append(args, filter.Type)
	}
	for k, v := range filter.Labels {
		clauses = append(clauses, "labels[?] = ?")
		args = append(args, k, v)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (r *metricsRepository) QuerySQL(ctx context.Context, sel *query.Select) (*query.Result, error) {
	return querySQL(ctx, r.db, sel)
}

func (r *metricsRepository) OldestTimestamp(ctx context.Context) (*int64, error) {
	_, oldest, _, err := tableAge(ctx, r.db, "metrics", "timestamp")
	return oldest, err
}

func (r *metricsRepository) NewestTimestamp(ctx context.Context) (*int64, error) {
	_, _, newest, err := tableAge(ctx, r.db, "metrics", "timestamp")
	return newest, err
}

func (r *metricsRepository) Count(ctx context.Context) (uint64, error) {
	count, _, _, err := tableAge(ctx, r.db, "metrics", "timestamp")
	return count, err
}

func (r *metricsRepository) UpdateTTL(ctx context.Context, days int) error {
	return alterTTL(ctx, r.db, "metrics", "timestamp", days)
}
