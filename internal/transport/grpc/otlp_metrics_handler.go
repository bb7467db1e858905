package grpc

import (
	"context"
	"fmt"

	"log/slog"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/otlp"
)

// OTLPMetricsHandler implements the OTLP MetricsService gRPC server.
type OTLPMetricsHandler struct {
	colmetricspb.UnimplementedMetricsServiceServer

	store     telemetry.MetricStore
	converter *otlp.MetricsConverter
	logger    *slog.Logger
}

// NewOTLPMetricsHandler creates a gRPC OTLP metrics handler.
func NewOTLPMetricsHandler(store telemetry.MetricStore, converter *otlp.MetricsConverter, logger *slog.Logger) *OTLPMetricsHandler {
	return &OTLPMetricsHandler{
		store:     store,
		converter: converter,
		logger:    logger,
	}
}

// Export implements MetricsService.Export.
func (h *OTLPMetricsHandler) Export(
	ctx context.Context,
	req *colmetricspb.ExportMetricsServiceRequest,
) (*colmetricspb.ExportMetricsServiceResponse, error) {
	samples, rejected := h.converter.Convert(req)

	h.logger.Debug("Received gRPC OTLP metrics request",
		"resource_metrics", len(req.GetResourceMetrics()),
		"samples", len(samples),
		"rejected", rejected,
	)

	if len(samples) > 0 {
		if err := h.store.InsertBatch(ctx, samples); err != nil {
			h.logger.Error("Failed to store OTLP metrics", "error", err)
			return nil, status.Error(codes.Internal, "failed to store metrics")
		}
	}

	resp := &colmetricspb.ExportMetricsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &colmetricspb.ExportMetricsPartialSuccess{
			RejectedDataPoints: int64(rejected),
			ErrorMessage:       fmt.Sprintf("%d data point(s) failed validation or are unsupported", rejected),
		}
	}
	return resp, nil
}

// RegisterOTLPMetricsService registers the handler with the gRPC server.
func RegisterOTLPMetricsService(server *grpc.Server, handler *OTLPMetricsHandler) {
	colmetricspb.RegisterMetricsServiceServer(server, handler)
}
