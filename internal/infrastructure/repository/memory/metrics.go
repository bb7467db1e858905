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

// MetricStore is the in-memory metric backend.
type MetricStore struct {
	mu      sync.RWMutex
	samples []*telemetry.Metric
	ttlDays int
}

// NewMetricStore creates an empty in-memory metric store.
func NewMetricStore() *MetricStore {
	return &MetricStore{ttlDays: retention.DefaultMetricsTTLDays}
}

// Insert appends one sample.
func (s *MetricStore) Insert(ctx context.Context, metric *telemetry.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, metric)
	return nil
}

// InsertBatch appends samples preserving batch order.
func (s *MetricStore) InsertBatch(ctx context.Context, metrics []*telemetry.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, metrics...)
	return nil
}

// Query linear-scans the sequence, newest first.
func (s *MetricStore) Query(ctx context.Context, filter telemetry.MetricFilter) ([]*telemetry.Metric, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*telemetry.Metric, 0)
	for _, m := range s.samples {
		if filter.StartTime != nil && m.Timestamp < *filter.StartTime {
			continue
		}
		if filter.EndTime != nil && m.Timestamp > *filter.EndTime {
			continue
		}
		if filter.Name != "" && m.Name != filter.Name {
			continue
		}
		if filter.Type != "" && string(m.MetricType) != filter.Type {
			continue
		}
		if !labelsMatch(m.Labels, filter.Labels) {
			continue
		}
		matched = append(matched, m)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp > matched[j].Timestamp
	})

	total := uint64(len(matched))
	start, end := paginate(len(matched), filter.Offset, filter.Limit)
	return matched[start:end], total, nil
}

func labelsMatch(labels, want map[string]string) bool {
	for k, v := range want {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// QuerySQL evaluates a Select against the metrics table or an aggregate
// tier, computing aggregation on demand.
func (s *MetricStore) QuerySQL(ctx context.Context, sel *query.Select) (*query.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []map[string]any
	switch sel.From {
	case "metrics":
		rows = make([]map[string]any, 0, len(s.samples))
		for _, m := range s.samples {
			rows = append(rows, metricRow(m))
		}
	case "metrics_1min":
		rows = s.aggregate(retention.Bucket1Min)
	case "metrics_5min":
		rows = s.aggregate(retention.Bucket5Min)
	case "metrics_1hour":
		rows = s.aggregate(retention.Bucket1Hour)
	case "metrics_1day":
		rows = s.aggregate(retention.Bucket1Day)
	default:
		return nil, telemetry.ErrUnknownTable
	}

	return querylang.ExecuteRows(sel, rows), nil
}

func metricRow(m *telemetry.Metric) map[string]any {
	return map[string]any{
		"timestamp":   m.Timestamp,
		"name":        m.Name,
		"metric_type": string(m.MetricType),
		"value":       m.Value,
		"service":     m.Service,
	}
}

// aggregate mirrors the metrics_* materialized views: scalar aggregates
// grouped by (bucket, service, name, metric_type, labels_hash).
func (s *MetricStore) aggregate(bucket retention.Bucket) []map[string]any {
	width := bucketWidthNs(bucket)
	type key struct {
		bucket     int64
		service    string
		name       string
		metricType string
		labelsHash uint64
	}
	type agg struct {
		count         uint64
		sum, min, max float64
	}
	groups := make(map[key]*agg)

	for _, m := range s.samples {
		k := key{
			bucket:     bucketStart(m.Timestamp, width),
			service:    m.Service,
			name:       m.Name,
			metricType: string(m.MetricType),
			labelsHash: labelsHash(m.Labels),
		}
		g, ok := groups[k]
		if !ok {
			g = &agg{min: m.Value, max: m.Value}
			groups[k] = g
		}
		g.count++
		g.sum += m.Value
		if m.Value < g.min {
			g.min = m.Value
		}
		if m.Value > g.max {
			g.max = m.Value
		}
	}

	rows := make([]map[string]any, 0, len(groups))
	for k, g := range groups {
		rows = append(rows, map[string]any{
			"bucket":      k.bucket,
			"service":     k.service,
			"name":        k.name,
			"metric_type": k.metricType,
			"labels_hash": k.labelsHash,
			"count":       g.count,
			"sum":         g.sum,
			"min":         g.min,
			"max":         g.max,
			"avg":         g.sum / float64(g.count),
		})
	}
	return rows
}

// OldestTimestamp returns the smallest stored timestamp, nil when empty.
func (s *MetricStore) OldestTimestamp(ctx context.Context) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, oldest, _ := ageOf(s.samples, func(m *telemetry.Metric) int64 { return m.Timestamp })
	return oldest, nil
}

// NewestTimestamp returns the largest stored timestamp, nil when empty.
func (s *MetricStore) NewestTimestamp(ctx context.Context) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, _, newest := ageOf(s.samples, func(m *telemetry.Metric) int64 { return m.Timestamp })
	return newest, nil
}

// Count returns the number of stored samples.
func (s *MetricStore) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.samples)), nil
}

// UpdateTTL records the policy; the in-memory backend has no expiry job.
func (s *MetricStore) UpdateTTL(ctx context.Context, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttlDays = days
	return nil
}

// TTLDays returns the currently applied TTL.
func (s *MetricStore) TTLDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttlDays
}
