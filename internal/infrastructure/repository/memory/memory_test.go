package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/querylang"
)

func TestLogStoreQueryFilters(t *testing.T) {
	ctx := context.Background()
	store := NewLogStore()

	require.NoError(t, store.InsertBatch(ctx, []*telemetry.LogRecord{
		{Timestamp: 100, Level: telemetry.LevelInfo, Message: "boot", Service: "api"},
		{Timestamp: 200, Level: telemetry.LevelError, Message: "crash", Service: "api"},
		{Timestamp: 300, Level: telemetry.LevelInfo, Message: "idle", Service: "worker"},
	}))

	logs, total, err := store.Query(ctx, telemetry.LogFilter{Service: "api", Contains: "BOO"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "boot", logs[0].Message)

	start := int64(150)
	logs, total, err = store.Query(ctx, telemetry.LogFilter{StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	// Newest first
	assert.Equal(t, int64(300), logs[0].Timestamp)
}

func TestLogStoreQuerySQL(t *testing.T) {
	ctx := context.Background()
	store := NewLogStore()

	require.NoError(t, store.Insert(ctx, &telemetry.LogRecord{
		Timestamp: 1700000000000000000,
		Level:     telemetry.LevelInfo,
		Message:   "boot",
		Service:   "api",
	}))

	sel, perr := querylang.Parse("SELECT * FROM logs WHERE level = 'info' AND service = 'api' LIMIT 10")
	require.Nil(t, perr)

	result, err := store.QuerySQL(ctx, sel)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "boot", result.Rows[0]["message"])
	assert.Equal(t, uint64(1), result.TotalMatched)
}

func TestLogStoreAggregateCounts(t *testing.T) {
	ctx := context.Background()
	store := NewLogStore()

	// Three messages normalizing to the same pattern across two hours
	base := int64(1700000000000000000)
	hour := int64(3600 * 1e9)
	require.NoError(t, store.InsertBatch(ctx, []*telemetry.LogRecord{
		{Timestamp: base, Level: telemetry.LevelError, Message: "Error at 2024-12-09T10:15:23Z", Service: "api"},
		{Timestamp: base + 1, Level: telemetry.LevelError, Message: "Error at 2024-12-09T11:30:45Z", Service: "api"},
		{Timestamp: base + hour, Level: telemetry.LevelError, Message: "Error at 2024-12-10T08:22:11Z", Service: "api"},
	}))

	sel, perr := querylang.Parse("SELECT * FROM logs_1hour_counts WHERE normalized_message = 'Error at <TIMESTAMP>'")
	require.Nil(t, perr)

	result, err := store.QuerySQL(ctx, sel)
	require.NoError(t, err)

	var sum uint64
	for _, row := range result.Rows {
		sum += row["count"].(uint64)
	}
	assert.Equal(t, uint64(3), sum)
}

func TestLogStoreAgeNullability(t *testing.T) {
	ctx := context.Background()
	store := NewLogStore()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	oldest, err := store.OldestTimestamp(ctx)
	require.NoError(t, err)
	assert.Nil(t, oldest)

	newest, err := store.NewestTimestamp(ctx)
	require.NoError(t, err)
	assert.Nil(t, newest)

	require.NoError(t, store.Insert(ctx, &telemetry.LogRecord{
		Timestamp: 42, Level: telemetry.LevelInfo, Message: "x", Service: "s",
	}))

	oldest, err = store.OldestTimestamp(ctx)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, int64(42), *oldest)
}

func TestLogStoreUpdateTTL(t *testing.T) {
	store := NewLogStore()
	assert.Equal(t, 30, store.TTLDays())
	require.NoError(t, store.UpdateTTL(context.Background(), 60))
	assert.Equal(t, 60, store.TTLDays())
}

func TestMetricStoreQueryFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMetricStore()

	require.NoError(t, store.InsertBatch(ctx, []*telemetry.Metric{
		{Timestamp: 1, Name: "cpu", MetricType: telemetry.MetricTypeGauge, Value: 0.5, Service: "api",
			Labels: map[string]string{"host": "a"}},
		{Timestamp: 2, Name: "cpu", MetricType: telemetry.MetricTypeGauge, Value: 0.7, Service: "api",
			Labels: map[string]string{"host": "b"}},
		{Timestamp: 3, Name: "requests", MetricType: telemetry.MetricTypeCounter, Value: 10, Service: "api"},
	}))

	metrics, total, err := store.Query(ctx, telemetry.MetricFilter{Name: "cpu"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.Len(t, metrics, 2)

	metrics, total, err = store.Query(ctx, telemetry.MetricFilter{
		Labels: map[string]string{"host": "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, metrics, 1)
	assert.Equal(t, 0.5, metrics[0].Value)

	metrics, _, err = store.Query(ctx, telemetry.MetricFilter{Type: "counter"})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "requests", metrics[0].Name)
}

func TestMetricStoreAggregate(t *testing.T) {
	ctx := context.Background()
	store := NewMetricStore()

	base := int64(1700000000000000000)
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Insert(ctx, &telemetry.Metric{
			Timestamp:  base + int64(i)*1e9,
			Name:       "latency",
			MetricType: telemetry.MetricTypeGauge,
			Value:      float64(i + 1),
			Service:    "api",
		}))
	}

	sel, perr := querylang.Parse("SELECT * FROM metrics_1hour WHERE service = 'api'")
	require.Nil(t, perr)

	result, err := store.QuerySQL(ctx, sel)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, uint64(10), row["count"])
	assert.Equal(t, float64(55), row["sum"])
	assert.Equal(t, float64(1), row["min"])
	assert.Equal(t, float64(10), row["max"])
	assert.Equal(t, float64(5.5), row["avg"])
}

func TestTraceStoreQueryAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewTraceStore()

	spans := []*telemetry.Span{
		{TraceID: "t1", SpanID: "root", StartTime: 100, EndTime: 400, Service: "api",
			Operation: "GET /x", SpanKind: telemetry.SpanKindServer, StatusCode: telemetry.StatusOK},
		{TraceID: "t1", SpanID: "child", ParentSpanID: "root", StartTime: 150, EndTime: 300,
			Service: "api", Operation: "SELECT", SpanKind: telemetry.SpanKindClient, StatusCode: telemetry.StatusOK},
		{TraceID: "t2", SpanID: "other", StartTime: 500, EndTime: 5000, Service: "worker",
			Operation: "job", SpanKind: telemetry.SpanKindInternal, StatusCode: telemetry.StatusError},
	}
	for _, sp := range spans {
		require.NoError(t, sp.Validate())
	}
	require.NoError(t, store.InsertBatch(ctx, spans))

	minDur := int64(1000)
	got, total, err := store.Query(ctx, telemetry.TraceFilter{MinDurationNs: &minDur})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].SpanID)

	trace, err := store.GetTrace(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, trace.SpanCount)
	assert.Equal(t, "root", trace.Spans[0].SpanID)

	_, err = store.GetTrace(ctx, "missing")
	assert.ErrorIs(t, err, telemetry.ErrTraceNotFound)
}

func TestTraceStoreSpanStats(t *testing.T) {
	ctx := context.Background()
	store := NewTraceStore()

	// 100 spans with durations 10..200ms across one (service, operation)
	base := int64(1700000000000000000)
	var spans []*telemetry.Span
	for i := 0; i < 100; i++ {
		durationMs := 10 + int64(float64(i)*190.0/99.0)
		sp := &telemetry.Span{
			TraceID:    fmt.Sprintf("trace-%d", i),
			SpanID:     fmt.Sprintf("span-%d", i),
			StartTime:  base + int64(i)*1e6,
			EndTime:    base + int64(i)*1e6 + durationMs*1e6,
			Service:    "api",
			Operation:  "GET /x",
			SpanKind:   telemetry.SpanKindServer,
			StatusCode: telemetry.StatusOK,
		}
		require.NoError(t, sp.Validate())
		spans = append(spans, sp)
	}
	require.NoError(t, store.InsertBatch(ctx, spans))

	sel, perr := querylang.Parse("SELECT * FROM spans_1hour_stats WHERE service = 'api' AND operation = 'GET /x'")
	require.Nil(t, perr)

	result, err := store.QuerySQL(ctx, sel)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, uint64(100), row["span_count"])
	assert.Equal(t, int64(10*1e6), row["min_duration_ns"])
	assert.Equal(t, int64(200*1e6), row["max_duration_ns"])

	p50 := row["p50"].(int64)
	p95 := row["p95"].(int64)
	p99 := row["p99"].(int64)
	assert.LessOrEqual(t, p50, p95)
	assert.LessOrEqual(t, p95, p99)
}

func TestBucketStart(t *testing.T) {
	hour := int64(3600 * 1e9)
	assert.Equal(t, int64(0), bucketStart(10, hour))
	assert.Equal(t, hour, bucketStart(hour+5, hour))
	assert.Equal(t, -hour, bucketStart(-5, hour))
}
