package grpc

import (
	"context"
	"fmt"

	"log/slog"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/otlp"
)

// OTLPLogsHandler implements the OTLP LogsService gRPC server.
type OTLPLogsHandler struct {
	collogspb.UnimplementedLogsServiceServer

	store     telemetry.LogStore
	converter *otlp.LogsConverter
	logger    *slog.Logger
}

// NewOTLPLogsHandler creates a gRPC OTLP logs handler.
func NewOTLPLogsHandler(store telemetry.LogStore, converter *otlp.LogsConverter, logger *slog.Logger) *OTLPLogsHandler {
	return &OTLPLogsHandler{
		store:     store,
		converter: converter,
		logger:    logger,
	}
}

// Export implements LogsService.Export.
func (h *OTLPLogsHandler) Export(
	ctx context.Context,
	req *collogspb.ExportLogsServiceRequest,
) (*collogspb.ExportLogsServiceResponse, error) {
	records, rejected := h.converter.Convert(req)

	h.logger.Debug("Received gRPC OTLP logs request",
		"resource_logs", len(req.GetResourceLogs()),
		"records", len(records),
		"rejected", rejected,
	)

	if len(records) > 0 {
		if err := h.store.InsertBatch(ctx, records); err != nil {
			h.logger.Error("Failed to store OTLP logs", "error", err)
			return nil, status.Error(codes.Internal, "failed to store logs")
		}
	}

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: int64(rejected),
			ErrorMessage:       fmt.Sprintf("%d log record(s) failed validation", rejected),
		}
	}
	return resp, nil
}

// RegisterOTLPLogsService registers the handler with the gRPC server.
func RegisterOTLPLogsService(server *grpc.Server, handler *OTLPLogsHandler) {
	collogspb.RegisterLogsServiceServer(server, handler)
}
