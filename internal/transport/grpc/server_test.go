package grpc

import (
	"context"
	"io"
	"testing"

	"log/slog"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/Thomblin/heimsight/internal/core/services/otlp"
	"github.com/Thomblin/heimsight/internal/infrastructure/repository/memory"
)

func testSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLogrus() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func stringValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

func serviceResource(name string) *resourcepb.Resource {
	return &resourcepb.Resource{
		Attributes: []*commonpb.KeyValue{
			{Key: "service.name", Value: stringValue(name)},
		},
	}
}

func TestLogsExport(t *testing.T) {
	store := memory.NewLogStore()
	handler := NewOTLPLogsHandler(store, otlp.NewLogsConverter(testLogrus()), testSlog())

	resp, err := handler.Export(context.Background(), &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: serviceResource("api"),
			ScopeLogs: []*logspb.ScopeLogs{{
				LogRecords: []*logspb.LogRecord{
					{TimeUnixNano: 1, Body: stringValue("boot")},
					{TimeUnixNano: 2}, // empty body, rejected
				},
			}},
		}},
	})
	require.NoError(t, err)

	require.NotNil(t, resp.GetPartialSuccess())
	assert.Equal(t, int64(1), resp.GetPartialSuccess().GetRejectedLogRecords())

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestLogsExportFullSuccessOmitsPartial(t *testing.T) {
	store := memory.NewLogStore()
	handler := NewOTLPLogsHandler(store, otlp.NewLogsConverter(testLogrus()), testSlog())

	resp, err := handler.Export(context.Background(), &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: serviceResource("api"),
			ScopeLogs: []*logspb.ScopeLogs{{
				LogRecords: []*logspb.LogRecord{{TimeUnixNano: 1, Body: stringValue("ok")}},
			}},
		}},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.GetPartialSuccess())
}

func TestMetricsExport(t *testing.T) {
	store := memory.NewMetricStore()
	handler := NewOTLPMetricsHandler(store, otlp.NewMetricsConverter(testLogrus()), testSlog())

	resp, err := handler.Export(context.Background(), &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource: serviceResource("api"),
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Metrics: []*metricspb.Metric{{
					Name: "cpu",
					Data: &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
						DataPoints: []*metricspb.NumberDataPoint{{
							TimeUnixNano: 1,
							Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: 0.5},
						}},
					}},
				}},
			}},
		}},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.GetPartialSuccess())

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestTracesExport(t *testing.T) {
	store := memory.NewTraceStore()
	handler := NewOTLPTracesHandler(store, otlp.NewTracesConverter(testLogrus()), testSlog())

	resp, err := handler.Export(context.Background(), &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource: serviceResource("api"),
			ScopeSpans: []*tracepb.ScopeSpans{{
				Spans: []*tracepb.Span{{
					TraceId:           []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
					SpanId:            []byte{1, 2, 3, 4, 5, 6, 7, 8},
					Name:              "GET /x",
					StartTimeUnixNano: 100,
					EndTimeUnixNano:   200,
				}},
			}},
		}},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.GetPartialSuccess())

	trace, err := store.GetTrace(context.Background(), "0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	assert.Equal(t, 1, trace.SpanCount)
}
