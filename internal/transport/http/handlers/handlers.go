// Package handlers implements the REST and OTLP-HTTP endpoints.
package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/config"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/otlp"
	"github.com/Thomblin/heimsight/internal/core/services/querylang"
	"github.com/Thomblin/heimsight/internal/core/services/retention"
)

var (
	ingestedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimsight_ingested_records_total",
			Help: "Records accepted into the store, by signal",
		},
		[]string{"signal"},
	)

	rejectedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimsight_rejected_records_total",
			Help: "Records dropped by schema validation, by signal",
		},
		[]string{"signal"},
	)
)

// Handlers bundles all HTTP handler groups over the shared state.
type Handlers struct {
	Health    *HealthHandler
	Logs      *LogsHandler
	Metrics   *MetricsHandler
	Traces    *TracesHandler
	Query     *QueryHandler
	Retention *RetentionHandler
	OTLP      *OTLPHandler
}

// New wires the handler groups.
func New(
	cfg *config.Config,
	stores *telemetry.Stores,
	querySvc *querylang.Service,
	retentionSvc *retention.Service,
	backendHealth func() error,
	logger *logrus.Logger,
) *Handlers {
	return &Handlers{
		Health:    &HealthHandler{cfg: cfg, backendHealth: backendHealth},
		Logs:      &LogsHandler{stores: stores, logger: logger},
		Metrics:   &MetricsHandler{stores: stores, logger: logger},
		Traces:    &TracesHandler{stores: stores, logger: logger},
		Query:     &QueryHandler{service: querySvc, logger: logger},
		Retention: &RetentionHandler{service: retentionSvc, logger: logger},
		OTLP: &OTLPHandler{
			stores:         stores,
			logsConverter:  otlp.NewLogsConverter(logger),
			metricsConv:    otlp.NewMetricsConverter(logger),
			tracesConv:     otlp.NewTracesConverter(logger),
			maxRequestSize: cfg.Server.MaxRequestSize,
			logger:         logger,
		},
	}
}
