package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
)

// logsRepository implements telemetry.LogStore on ClickHouse.
type logsRepository struct {
	db driver.Conn
}

// NewLogsRepository creates the column-store log backend.
func NewLogsRepository(db driver.Conn) telemetry.LogStore {
	return &logsRepository{db: db}
}

func (r *logsRepository) Insert(ctx context.Context, record *telemetry.LogRecord) error {
	return r.InsertBatch(ctx, []*telemetry.LogRecord{record})
}

// InsertBatch writes records in a single batch, preserving batch order.
// normalized_message is a materialized column computed by the store.
func (r *logsRepository) InsertBatch(ctx context.Context, records []*telemetry.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.db.PrepareBatch(ctx, `
		INSERT INTO logs (
			timestamp, level, message, service, trace_id, span_id, attributes
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, record := range records {
		attrs := record.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		err = batch.Append(
			record.Timestamp,
			string(record.Level),
			record.Message,
			record.Service,
			record.TraceID,
			record.SpanID,
			attrs,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	return batch.Send()
}

func (r *logsRepository) Query(ctx context.Context, filter telemetry.LogFilter) ([]*telemetry.LogRecord, uint64, error) {
	where, args := buildLogWhere(filter)

	limit := filter.Limit
	if limit <= 0 || limit > int(query.MaxLimit) {
		limit = int(query.MaxLimit)
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	stmt := fmt.Sprintf(`
		SELECT timestamp, level, message, service, trace_id, span_id, attributes
		FROM logs %s
		ORDER BY timestamp DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	records := make([]*telemetry.LogRecord, 0)
	for rows.Next() {
		var (
			rec   telemetry.LogRecord
			level string
			attrs map[string]string
		)
		if err := rows.Scan(&rec.Timestamp, &level, &rec.Message, &rec.Service,
			&rec.TraceID, &rec.SpanID, &attrs); err != nil {
			return nil, 0, fmt.Errorf("scan log: %w", err)
		}
		rec.Level = telemetry.Level(level)
		rec.Attributes = attrs
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total uint64
	countStmt := "SELECT count() FROM logs " + where
	if err := r.db.QueryRow(ctx, countStmt, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	return records, total, nil
}

func buildLogWhere(filter telemetry.LogFilter) (string, []any) {
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
	if filter.Level != "" {
		clauses = append(clauses, "level = ?")
		args = append(args, filter.Level)
	}
	if filter.Service != "" {
		clauses = append(clauses, "service = ?")
		args = append(args, filter.Service)
	}
	if filter.Contains != "" {
		clauses = append(clauses, "positionCaseInsensitive(message, ?) > 0")
		args = append(args, filter.Contains)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (r *logsRepository) QuerySQL(ctx context.Context, sel *query.Select) (*query.Result, error) {
	return querySQL(ctx, r.db, sel)
}

func (r *logsRepository) OldestTimestamp(ctx context.Context) (*int64, error) {
	_, oldest, _, err := tableAge(ctx, r.db, "logs", "timestamp")
	return oldest, err
}

func (r *logsRepository) NewestTimestamp(ctx context.Context) (*int64, error) {
	_, _, newest, err := tableAge(ctx, r.db, "logs", "timestamp")
	return newest, err
}

func (r *logsRepository) Count(ctx context.Context) (uint64, error) {
	count, _, _, err := tableAge(ctx, r.db, "logs", "timestamp")
	return count, err
}

func (r *logsRepository) UpdateTTL(ctx context.Context, days int) error {
	return alterTTL(ctx, r.db, "logs", "timestamp", days)
}
