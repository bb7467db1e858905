package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/domain/retention"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/querylang"
)

// TraceStore is the in-memory span backend; traces are derived views.
type TraceStore struct {
	mu      sync.RWMutex
	spans   []*telemetry.Span
	ttlDays int
}

// NewTraceStore creates an empty in-memory trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{ttlDays: retention.DefaultTracesTTLDays}
}

// Insert appends one span.
func (s *TraceStore) Insert(ctx context.Context, span *telemetry.Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, span)
	return nil
}

// InsertBatch appends spans preserving batch order.
func (s *TraceStore) InsertBatch(ctx context.Context, spans []*telemetry.Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, spans...)
	return nil
}

// Query linear-scans spans; the handler groups the page into traces.
func (s *TraceStore) Query(ctx context.Context, filter telemetry.TraceFilter) ([]*telemetry.Span, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*telemetry.Span, 0)
	for _, sp := range s.spans {
		if filter.StartTime != nil && sp.StartTime < *filter.StartTime {
			continue
		}
		if filter.EndTime != nil && sp.StartTime > *filter.EndTime {
			continue
		}
		if filter.Service != "" && sp.Service != filter.Service {
			continue
		}
		if filter.Status != "" && string(sp.StatusCode) != filter.Status {
			continue
		}
		if filter.MinDurationNs != nil && sp.DurationNs < *filter.MinDurationNs {
			continue
		}
		if filter.MaxDurationNs != nil && sp.DurationNs > *filter.MaxDurationNs {
			continue
		}
		matched = append(matched, sp)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].StartTime > matched[j].StartTime
	})

	total := uint64(len(matched))
	start, end := paginate(len(matched), filter.Offset, filter.Limit)
	return matched[start:end], total, nil
}

// GetTrace assembles the derived trace view for one trace ID.
func (s *TraceStore) GetTrace(ctx context.Context, traceID string) (*telemetry.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var spans []*telemetry.Span
	for _, sp := range s.spans {
		if sp.TraceID == traceID {
			spans = append(spans, sp)
		}
	}
	if len(spans) == 0 {
		return nil, telemetry.ErrTraceNotFound
	}
	return telemetry.NewTrace(traceID, spans), nil
}

// QuerySQL evaluates a Select against the spans table or a stats tier,
// computing aggregation on demand.
func (s *TraceStore) QuerySQL(ctx context.Context, sel *query.Select) (*query.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []map[string]any
	switch sel.From {
	case "spans", "traces":
		rows = make([]map[string]any, 0, len(s.spans))
		for _, sp := range s.spans {
			rows = append(rows, spanRow(sp))
		}
	case "spans_1hour_stats":
		rows = s.aggregateSpans(retention.Bucket1Hour, false)
	case "spans_1day_stats":
		rows = s.aggregateSpans(retention.Bucket1Day, false)
	case "traces_1hour_stats":
		rows = s.aggregateSpans(retention.Bucket1Hour, true)
	case "traces_1day_stats":
		rows = s.aggregateSpans(retention.Bucket1Day, true)
	default:
		return nil, telemetry.ErrUnknownTable
	}

	return querylang.ExecuteRows(sel, rows), nil
}

func spanRow(sp *telemetry.Span) map[string]any {
	return map[string]any{
		"trace_id":       sp.TraceID,
		"span_id":        sp.SpanID,
		"parent_span_id": sp.ParentSpanID,
		"start_time":     sp.StartTime,
		"end_time":       sp.EndTime,
		"duration_ns":    sp.DurationNs,
		"name":           sp.Name,
		"operation":      sp.Operation,
		"service":        sp.Service,
		"span_kind":      string(sp.SpanKind),
		"status_code":    string(sp.StatusCode),
		"status_message": sp.StatusMessage,
	}
}

// aggregateSpans mirrors the spans_*_stats and traces_*_stats views:
// duration statistics grouped by (bucket, service, operation, span_kind,
// status_code). In trace mode spans collapse to root spans first so the
// statistics describe whole-trace latency.
func (s *TraceStore) aggregateSpans(bucket retention.Bucket, traceLevel bool) []map[string]any {
	width := bucketWidthNs(bucket)

	spans := s.spans
	if traceLevel {
		spans = rootSpans(s.spans)
	}

	type key struct {
		bucket     int64
		service    string
		operation  string
		spanKind   string
		statusCode string
	}
	groups := make(map[key][]int64)

	for _, sp := range spans {
		k := key{
			bucket:     bucketStart(sp.StartTime, width),
			service:    sp.Service,
			operation:  sp.Operation,
			spanKind:   string(sp.SpanKind),
			statusCode: string(sp.StatusCode),
		}
		groups[k] = append(groups[k], sp.DurationNs)
	}

	rows := make([]map[string]any, 0, len(groups))
	for k, durations := range groups {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		var sum int64
		for _, d := range durations {
			sum += d
		}
		n := int64(len(durations))

		rows = append(rows, map[string]any{
			"bucket":          k.bucket,
			"service":         k.service,
			"operation":       k.operation,
			"span_kind":       k.spanKind,
			"status_code":     k.statusCode,
			"span_count":      uint64(n),
			"avg_duration_ns": sum / n,
			"min_duration_ns": durations[0],
			"max_duration_ns": durations[n-1],
			"p50":             percentile(durations, 0.50),
			"p95":             percentile(durations, 0.95),
			"p99":             percentile(durations, 0.99),
		})
	}
	return rows
}

// rootSpans picks one representative span per trace: the span without a
// parent, falling back to the earliest span for traces whose root was
// never received (orphan root).
func rootSpans(spans []*telemetry.Span) []*telemetry.Span {
	best := make(map[string]*telemetry.Span)
	for _, sp := range spans {
		cur, ok := best[sp.TraceID]
		switch {
		case !ok:
			best[sp.TraceID] = sp
		case sp.ParentSpanID == "" && cur.ParentSpanID != "":
			best[sp.TraceID] = sp
		case (sp.ParentSpanID == "") == (cur.ParentSpanID == "") && sp.StartTime < cur.StartTime:
			best[sp.TraceID] = sp
		}
	}
	roots := make([]*telemetry.Span, 0, len(best))
	for _, sp := range best {
		roots = append(roots, sp)
	}
	return roots
}

// OldestTimestamp returns the smallest span start time, nil when empty.
func (s *TraceStore) OldestTimestamp(ctx context.Context) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, oldest, _ := ageOf(s.spans, func(sp *telemetry.Span) int64 { return sp.StartTime })
	return oldest, nil
}

// NewestTimestamp returns the largest span start time, nil when empty.
func (s *TraceStore) NewestTimestamp(ctx context.Context) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, _, newest := ageOf(s.spans, func(sp *telemetry.Span) int64 { return sp.StartTime })
	return newest, nil
}

// Count returns the number of stored spans.
func (s *TraceStore) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.spans)), nil
}

// UpdateTTL records the policy; the in-memory backend has no expiry job.
func (s *TraceStore) UpdateTTL(ctx context.Context, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttlDays = days
	return nil
}

// TTLDays returns the currently applied TTL.
func (s *TraceStore) TTLDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttlDays
}
