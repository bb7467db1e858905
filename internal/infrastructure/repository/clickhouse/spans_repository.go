package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
)

// spansRepository implements telemetry.TraceStore on ClickHouse. Span events
// and links are stored as parallel arrays, preserving ingest order.
type spansRepository struct {
	db driver.Conn
}

// NewSpansRepository creates the column-store trace backend.
func NewSpansRepository(db driver.Conn) telemetry.TraceStore {
	return &spansRepository{db: db}
}

const spanColumns = `
	trace_id, span_id, parent_span_id, start_time, end_time, duration_ns,
	name, operation, service, span_kind, status_code, status_message,
	attributes, resource_attributes,
	event_timestamps, event_names, event_attributes,
	link_trace_ids, link_span_ids, link_attributes
`

func (r *spansRepository) Insert(ctx context.Context, span *telemetry.Span) error {
	return r.InsertBatch(ctx, []*telemetry.Span{span})
}

func (r *spansRepository) InsertBatch(ctx context.Context, spans []*telemetry.Span) error {
	if len(spans) == 0 {
		return nil
	}

	batch, err := r.db.PrepareBatch(ctx, "INSERT INTO spans ("+spanColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, span := range spans {
		eventTimestamps := make([]int64, len(span.Events))
		eventNames := make([]string, len(span.Events))
		eventAttrs := make([]map[string]string, len(span.Events))
		for i, e := range span.Events {
			eventTimestamps[i] = e.Timestamp
			eventNames[i] = e.Name
			eventAttrs[i] = orEmpty(e.Attributes)
		}

		linkTraceIDs := make([]string, len(span.Links))
		linkSpanIDs := make([]string, len(span.Links))
		linkAttrs := make([]map[string]string, len(span.Links))
		for i, l := range span.Links {
			linkTraceIDs[i] = l.TraceID
			linkSpanIDs[i] = l.SpanID
			linkAttrs[i] = orEmpty(l.Attributes)
		}

		err = batch.Append(
			span.TraceID,
			span.SpanID,
			span.ParentSpanID,
			span.StartTime,
			span.EndTime,
			span.DurationNs,
			span.Name,
			span.Operation,
			span.Service,
			string(span.SpanKind),
			string(span.StatusCode),
			span.StatusMessage,
			orEmpty(span.Attributes),
			orEmpty(span.ResourceAttributes),
			eventTimestamps,
			eventNames,
			eventAttrs,
			linkTraceIDs,
			linkSpanIDs,
			linkAttrs,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	return batch.Send()
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func (r *spansRepository) Query(ctx context.Context, filter telemetry.TraceFilter) ([]*telemetry.Span, uint64, error) {
	where, args := buildSpanWhere(filter)

	limit := filter.Limit
	if limit <= 0 || limit > int(query.MaxLimit) {
		limit = int(query.MaxLimit)
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	stmt := fmt.Sprintf(`
		SELECT %s FROM spans %s
		ORDER BY start_time DESC
		LIMIT %d OFFSET %d
	`, spanColumns, where, limit, offset)

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query spans: %w", err)
	}
	defer rows.Close()

	spans, err := scanSpans(rows)
	if err != nil {
		return nil, 0, err
	}

	var total uint64
	countStmt := "SELECT count() FROM spans " + where
	if err := r.db.QueryRow(ctx, countStmt, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count spans: %w", err)
	}

	return spans, total, nil
}

func buildSpanWhere(filter telemetry.TraceFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.StartTime != nil {
		clauses = append(clauses, "start_time >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		clauses = append(clauses, "start_time <= ?")
		args = append(args, *filter.EndTime)
	}
	if filter.Service != "" {
		clauses = append(clauses, "service = ?")
		args = append(args, filter.Service)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status_code = ?")
		args = append(args, filter.Status)
	}
	if filter.MinDurationNs != nil {
		clauses = append(clauses, "duration_ns >= ?")
		args = append(args, *filter.MinDurationNs)
	}
	if filter.MaxDurationNs != nil {
		clauses = append(clauses, "duration_ns <= ?")
		args = append(args, *filter.MaxDurationNs)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanSpans(rows driver.Rows) ([]*telemetry.Span, error) {
	spans := make([]*telemetry.Span, 0)
	for rows.Next() {
		var (
			sp              telemetry.Span
			spanKind        string
			statusCode      string
			attrs           map[string]string
			resourceAttrs   map[string]string
			eventTimestamps []int64
			eventNames      []string
			eventAttrs      []map[string]string
			linkTraceIDs    []string
			linkSpanIDs     []string
			linkAttrs       []map[string]string
		)
		if err := rows.Scan(
			&sp.TraceID, &sp.SpanID, &sp.ParentSpanID,
			&sp.StartTime, &sp.EndTime, &sp.DurationNs,
			&sp.Name, &sp.Operation, &sp.Service,
			&spanKind, &statusCode, &sp.StatusMessage,
			&attrs, &resourceAttrs,
			&eventTimestamps, &eventNames, &eventAttrs,
			&linkTraceIDs, &linkSpanIDs, &linkAttrs,
		); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}

		sp.SpanKind = telemetry.SpanKind(spanKind)
		sp.StatusCode = telemetry.StatusCode(statusCode)
		sp.Attributes = attrs
		sp.ResourceAttributes = resourceAttrs

		for i := range eventNames {
			var ts int64
			if i < len(eventTimestamps) {
				ts = eventTimestamps[i]
			}
			var ea map[string]string
			if i < len(eventAttrs) {
				ea = eventAttrs[i]
			}
			sp.Events = append(sp.Events, telemetry.SpanEvent{
				Timestamp:  ts,
				Name:       eventNames[i],
				Attributes: ea,
			})
		}
		for i := range linkTraceIDs {
			var sid string
			if i < len(linkSpanIDs) {
				sid = linkSpanIDs[i]
			}
			var la map[string]string
			if i < len(linkAttrs) {
				la = linkAttrs[i]
			}
			sp.Links = append(sp.Links, telemetry.SpanLink{
				TraceID:    linkTraceIDs[i],
				SpanID:     sid,
				Attributes: la,
			})
		}

		spans = append(spans, &sp)
	}
	return spans, rows.Err()
}

func (r *spansRepository) GetTrace(ctx context.Context, traceID string) (*telemetry.Trace, error) {
	stmt := fmt.Sprintf("SELECT %s FROM spans WHERE trace_id = ? ORDER BY start_time ASC", spanColumns)

	rows, err := r.db.Query(ctx, stmt, traceID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	spans, err := scanSpans(rows)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, telemetry.ErrTraceNotFound
	}
	return telemetry.NewTrace(traceID, spans), nil
}

func (r *spansRepository) QuerySQL(ctx context.Context, sel *query.Select) (*query.Result, error) {
	return querySQL(ctx, r.db, sel)
}

func (r *spansRepository) OldestTimestamp(ctx context.Context) (*int64, error) {
	_, oldest, _, err := tableAge(ctx, r.db, "spans", "start_time")
	return oldest, err
}

func (r *spansRepository) NewestTimestamp(ctx context.Context) (*int64, error) {
	_, _, newest, err := tableAge(ctx, r.db, "spans", "start_time")
	return newest, err
}

func (r *spansRepository) Count(ctx context.Context) (uint64, error) {
	count, _, _, err := tableAge(ctx, r.db, "spans", "start_time")
	return count, err
}

func (r *spansRepository) UpdateTTL(ctx context.Context, days int) error {
	return alterTTL(ctx, r.db, "spans", "start_time", days)
}
