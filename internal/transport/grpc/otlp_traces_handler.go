package grpc

import (
	"context"
	"fmt"

	"log/slog"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/otlp"
)

// OTLPTracesHandler implements the OTLP TraceService gRPC server.
type OTLPTracesHandler struct {
	coltracepb.UnimplementedTraceServiceServer

	store     telemetry.TraceStore
	converter *otlp.TracesConverter
	logger    *slog.Logger
}

// NewOTLPTracesHandler creates a gRPC OTLP traces handler.
func NewOTLPTracesHandler(store telemetry.TraceStore, converter *otlp.TracesConverter, logger *slog.Logger) *OTLPTracesHandler {
	return &OTLPTracesHandler{
		store:     store,
		converter: converter,
		logger:    logger,
	}
}

// Export implements TraceService.Export.
func (h *OTLPTracesHandler) Export(
	ctx context.Context,
	req *coltracepb.ExportTraceServiceRequest,
) (*coltracepb.ExportTraceServiceResponse, error) {
	spans, rejected := h.converter.Convert(req)

	h.logger.Debug("Received gRPC OTLP traces request",
		"resource_spans", len(req.GetResourceSpans()),
		"spans", len(spans),
		"rejected", rejected,
	)

	if len(spans) > 0 {
		if err := h.store.InsertBatch(ctx, spans); err != nil {
			h.logger.Error("Failed to store OTLP spans", "error", err)
			return nil, status.Error(codes.Internal, "failed to store spans")
		}
	}

	resp := &coltracepb.ExportTraceServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &coltracepb.ExportTracePartialSuccess{
			RejectedSpans: int64(rejected),
			ErrorMessage:  fmt.Sprintf("%d span(s) failed validation", rejected),
		}
	}
	return resp, nil
}

// RegisterOTLPTracesService registers the handler with the gRPC server.
func RegisterOTLPTracesService(server *grpc.Server, handler *OTLPTracesHandler) {
	coltracepb.RegisterTraceServiceServer(server, handler)
}
