package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/Thomblin/heimsight/internal/config"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/querylang"
	"github.com/Thomblin/heimsight/internal/core/services/retention"
	"github.com/Thomblin/heimsight/internal/infrastructure/repository/memory"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "heimsight", Version: "0.1.0"},
		Server: config.ServerConfig{
			MaxRequestSize: 10 * 1024 * 1024,
		},
	}
}

// newTestRouter wires the handlers over fresh in-memory stores.
func newTestRouter(t *testing.T) (*gin.Engine, *telemetry.Stores) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stores := &telemetry.Stores{
		Logs:    memory.NewLogStore(),
		Metrics: memory.NewMetricStore(),
		Traces:  memory.NewTraceStore(),
	}

	logger := testLogger()
	cfg := testConfig()
	querySvc := querylang.NewService(stores, logger)
	retentionSvc := retention.NewService(stores, logger)

	h := New(cfg, stores, querySvc, retentionSvc, nil, logger)

	engine := gin.New()
	engine.GET("/health", h.Health.Check)
	engine.POST("/v1/logs", h.OTLP.HandleLogs)
	engine.POST("/v1/metrics", h.OTLP.HandleMetrics)
	engine.POST("/v1/traces", h.OTLP.HandleTraces)

	api := engine.Group("/api/v1")
	api.POST("/logs", h.Logs.Create)
	api.GET("/logs", h.Logs.List)
	api.POST("/metrics", h.Metrics.Create)
	api.GET("/metrics", h.Metrics.List)
	api.POST("/traces", h.Traces.Create)
	api.GET("/traces", h.Traces.List)
	api.GET("/traces/:trace_id", h.Traces.Get)
	api.POST("/query", h.Query.Execute)
	api.GET("/config/retention", h.Retention.GetConfig)
	api.PUT("/config/retention", h.Retention.PutConfig)
	api.PUT("/config/retention/policy", h.Retention.PutPolicy)
	api.GET("/config/retention/metrics", h.Retention.GetMetrics)

	return engine, stores
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestHealth(t *testing.T) {
	engine, _ := newTestRouter(t)
	w := doJSON(t, engine, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "heimsight", body["name"])
	assert.Equal(t, "0.1.0", body["version"])
}

func TestLogIngestThenQuery(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/logs", map[string]any{
		"message":   "boot",
		"service":   "api",
		"level":     "info",
		"timestamp": 1700000000000000000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/logs?service=api&contains=boo", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	logs := data["logs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "boot", logs[0].(map[string]any)["message"])
}

func TestLogIngestBatchWithInvalidRecord(t *testing.T) {
	engine, stores := newTestRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/logs", []map[string]any{
		{"message": "ok", "service": "api", "level": "info", "timestamp": 1},
		{"message": "", "service": "api", "level": "info", "timestamp": 2},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(1), data["accepted"])
	assert.Equal(t, float64(1), data["rejected"])

	// The valid record still committed
	count, err := stores.Logs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSQLQueryEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/logs", map[string]any{
		"message":   "boot",
		"service":   "api",
		"level":     "info",
		"timestamp": 1700000000000000000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, engine, http.MethodPost, "/api/v1/query", map[string]any{
		"query": "SELECT * FROM logs WHERE level = 'info' AND service = 'api' LIMIT 10",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["row_count"])
	assert.Equal(t, float64(1), data["total_matched"])
	assert.NotNil(t, data["ast"])

	rows := data["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "boot", rows[0].(map[string]any)["message"])
}

func TestSQLQueryParseError(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/query", map[string]any{
		"query": "SELECT * FROM logs WHERE level =",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]any)
	assert.NotNil(t, data["line"])
	assert.NotNil(t, data["column"])
	assert.NotEmpty(t, data["message"])
}

func TestTraceLifecycle(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/traces", []map[string]any{
		{
			"trace_id": "t1", "span_id": "root", "service": "api",
			"operation": "GET /x", "start_time": 100, "end_time": 400,
			"span_kind": "SERVER", "status_code": "OK",
		},
		{
			"trace_id": "t1", "span_id": "child", "parent_span_id": "root", "service": "api",
			"operation": "SELECT", "start_time": 150, "end_time": 300,
			"span_kind": "CLIENT", "status_code": "OK",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/traces?service=api", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	traces := data["traces"].([]any)
	require.Len(t, traces, 1)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/traces/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	trace := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(2), trace["span_count"])

	w = doJSON(t, engine, http.MethodGet, "/api/v1/traces/absent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetentionPolicyUpdate(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/config/retention", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(30), cfg["logs"].(map[string]any)["ttl_days"])

	w = doJSON(t, engine, http.MethodPut, "/api/v1/config/retention/policy", map[string]any{
		"data_type": "logs",
		"ttl_days":  60,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/config/retention", nil)
	cfg = decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(60), cfg["logs"].(map[string]any)["ttl_days"])
}

func TestRetentionPolicyValidation(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doJSON(t, engine, http.MethodPut, "/api/v1/config/retention/policy", map[string]any{
		"data_type": "logs",
		"ttl_days":  5000,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	envelope := decodeEnvelope(t, w)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, "TTL_VALIDATION", errObj["code"])

	// Prior value still served
	w = doJSON(t, engine, http.MethodGet, "/api/v1/config/retention", nil)
	cfg := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(30), cfg["logs"].(map[string]any)["ttl_days"])
}

func TestRetentionMetricsNullability(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/config/retention/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeEnvelope(t, w)["data"].(map[string]any)
	logs := data["logs"].(map[string]any)
	assert.Equal(t, float64(0), logs["count"])
	assert.Nil(t, logs["oldest_ts"])
	assert.Nil(t, logs["newest_ts"])
}

func TestOTLPMetricsPartialSuccessOverHTTP(t *testing.T) {
	engine, _ := newTestRouter(t)

	// One valid gauge and one unsupported exponential histogram
	body := []byte(`{
		"resourceMetrics": [{
			"resource": {"attributes": [{"key": "service.name", "value": {"stringValue": "api"}}]},
			"scopeMetrics": [{
				"metrics": [
					{"name": "cpu", "gauge": {"dataPoints": [{"timeUnixNano": "1700000000000000000", "asDouble": 0.5}]}},
					{"name": "lat", "exponentialHistogram": {"dataPoints": [{"timeUnixNano": "1700000000000000000"}]}}
				]
			}]
		}]
	}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/metrics", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp colmetricspb.ExportMetricsServiceResponse
	require.NoError(t, protojson.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.GetPartialSuccess())
	assert.Equal(t, int64(1), resp.GetPartialSuccess().GetRejectedDataPoints())

	// The gauge is visible through the native API
	w2 := doJSON(t, engine, http.MethodGet, "/api/v1/metrics?name=cpu", nil)
	require.Equal(t, http.StatusOK, w2.Code)
	data := decodeEnvelope(t, w2)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total"])
}

func TestOTLPUnsupportedContentType(t *testing.T) {
	engine, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewReader([]byte("x")))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestOTLPDecodeFailure(t *testing.T) {
	engine, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewReader([]byte("{broken")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
