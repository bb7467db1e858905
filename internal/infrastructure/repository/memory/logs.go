package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/domain/retention"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/querylang"
	"github.com/Thomblin/heimsight/pkg/normalize"
)

// LogStore is the in-memory log backend.
type LogStore struct {
	mu      sync.RWMutex
	records []*telemetry.LogRecord
	ttlDays int
}

// NewLogStore creates an empty in-memory log store.
func NewLogStore() *LogStore {
	return &LogStore{ttlDays: retention.DefaultLogsTTLDays}
}

// Insert appends one record.
func (s *LogStore) Insert(ctx context.Context, record *telemetry.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// InsertBatch appends records preserving batch order.
func (s *LogStore) InsertBatch(ctx context.Context, records []*telemetry.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// Query linear-scans the sequence, newest first.
func (s *LogStore) Query(ctx context.Context, filter telemetry.LogFilter) ([]*telemetry.LogRecord, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*telemetry.LogRecord, 0)
	for _, r := range s.records {
		if filter.StartTime != nil && r.Timestamp < *filter.StartTime {
			continue
		}
		if filter.EndTime != nil && r.Timestamp > *filter.EndTime {
			continue
		}
		if filter.Level != "" && string(r.Level) != filter.Level {
			continue
		}
		if filter.Service != "" && r.Service != filter.Service {
			continue
		}
		if filter.Contains != "" && !strings.Contains(strings.ToLower(r.Message), strings.ToLower(filter.Contains)) {
			continue
		}
		matched = append(matched, r)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp > matched[j].Timestamp
	})

	total := uint64(len(matched))
	start, end := paginate(len(matched), filter.Offset, filter.Limit)
	return matched[start:end], total, nil
}

// QuerySQL evaluates a Select against the logs table or its aggregate
// tiers, computing aggregation on demand.
func (s *LogStore) QuerySQL(ctx context.Context, sel *query.Select) (*query.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []map[string]any
	switch sel.From {
	case "logs":
		rows = make([]map[string]any, 0, len(s.records))
		for _, r := range s.records {
			rows = append(rows, logRow(r))
		}
	case "logs_1hour_counts":
		rows = s.aggregateCounts(retention.Bucket1Hour)
	case "logs_1day_counts":
		rows = s.aggregateCounts(retention.Bucket1Day)
	default:
		return nil, telemetry.ErrUnknownTable
	}

	return querylang.ExecuteRows(sel, rows), nil
}

func logRow(r *telemetry.LogRecord) map[string]any {
	return map[string]any{
		"timestamp":          r.Timestamp,
		"level":              string(r.Level),
		"message":            r.Message,
		"service":            r.Service,
		"trace_id":           r.TraceID,
		"span_id":            r.SpanID,
		"normalized_message": normalize.Message(r.Message),
	}
}

// aggregateCounts mirrors the logs_*_counts materialized views: counts
// grouped by (bucket, service, level, normalized_message) with a sample
// message for reference.
func (s *LogStore) aggregateCounts(bucket retention.Bucket) []map[string]any {
	width := bucketWidthNs(bucket)
	type key struct {
		bucket     int64
		service    string
		level      string
		normalized string
	}
	counts := make(map[key]uint64)
	samples := make(map[key]string)

	for _, r := range s.records {
		k := key{
			bucket:     bucketStart(r.Timestamp, width),
			service:    r.Service,
			level:      string(r.Level),
			normalized: normalize.Message(r.Message),
		}
		counts[k]++
		if _, ok := samples[k]; !ok {
			samples[k] = r.Message
		}
	}

	rows := make([]map[string]any, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, map[string]any{
			"bucket":             k.bucket,
			"service":            k.service,
			"level":              k.level,
			"normalized_message": k.normalized,
			"sample_message":     samples[k],
			"count":              n,
		})
	}
	return rows
}

// OldestTimestamp returns the smallest stored timestamp, nil when empty.
func (s *LogStore) OldestTimestamp(ctx context.Context) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, oldest, _ := ageOf(s.records, func(r *telemetry.LogRecord) int64 { return r.Timestamp })
	return oldest, nil
}

// NewestTimestamp returns the largest stored timestamp, nil when empty.
func (s *LogStore) NewestTimestamp(ctx context.Context) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, _, newest := ageOf(s.records, func(r *telemetry.LogRecord) int64 { return r.Timestamp })
	return newest, nil
}

// Count returns the number of stored records.
func (s *LogStore) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}

// UpdateTTL records the policy; the in-memory backend has no expiry job.
func (s *LogStore) UpdateTTL(ctx context.Context, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttlDays = days
	return nil
}

// TTLDays returns the currently applied TTL.
func (s *LogStore) TTLDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttlDays
}
