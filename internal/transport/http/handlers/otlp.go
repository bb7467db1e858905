package handlers

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/otlp"
	"github.com/Thomblin/heimsight/pkg/response"
)

// OTLPHandler serves the OTLP/HTTP ingestion endpoints. Decode failures
// reject the whole request with 400; per-record validation failures are
// reported through partial_success while the accepted subset commits.
type OTLPHandler struct {
	stores         *telemetry.Stores
	logsConverter  *otlp.LogsConverter
	metricsConv    *otlp.MetricsConverter
	tracesConv     *otlp.TracesConverter
	maxRequestSize int64
	logger         *logrus.Logger
}

// readBody validates content type, applies the size cap, and decompresses
// gzip bodies.
func (h *OTLPHandler) readBody(c *gin.Context) ([]byte, string, bool) {
	contentType := c.GetHeader("Content-Type")
	if !otlp.SupportedContentType(contentType) {
		h.logger.WithField("content_type", contentType).Warn("Unsupported Content-Type for OTLP endpoint")
		response.UnsupportedMediaType(c,
			"Content-Type must be 'application/x-protobuf' or 'application/json'")
		return nil, "", false
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestSize)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			response.PayloadTooLarge(c,
				fmt.Sprintf("request body exceeds maximum size of %d bytes", h.maxRequestSize))
			return nil, "", false
		}
		h.logger.WithError(err).Error("Failed to read OTLP request body")
		response.BadRequest(c, "invalid request", "failed to read request body")
		return nil, "", false
	}

	if strings.Contains(c.GetHeader("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			response.BadRequest(c, "invalid encoding", "failed to decompress gzip data")
			return nil, "", false
		}
		defer gzipReader.Close()

		body, err = io.ReadAll(gzipReader)
		if err != nil {
			response.BadRequest(c, "invalid encoding", "failed to read decompressed data")
			return nil, "", false
		}
	}

	return body, contentType, true
}

// respond writes an OTLP export response in the request's encoding.
func (h *OTLPHandler) respond(c *gin.Context, contentType string, msg proto.Message) {
	if strings.Contains(contentType, otlp.ContentTypeProtobuf) {
		payload, err := proto.Marshal(msg)
		if err != nil {
			response.InternalServerError(c, "failed to encode response")
			return
		}
		c.Data(http.StatusOK, otlp.ContentTypeProtobuf, payload)
		return
	}
	payload, err := protojson.Marshal(msg)
	if err != nil {
		response.InternalServerError(c, "failed to encode response")
		return
	}
	c.Data(http.StatusOK, otlp.ContentTypeJSON, payload)
}

func rejectionMessage(rejected uint64) string {
	if rejected == 0 {
		return ""
	}
	return fmt.Sprintf("%d record(s) failed validation or are unsupported", rejected)
}

// HandleLogs handles POST /v1/logs.
func (h *OTLPHandler) HandleLogs(c *gin.Context) {
	body, contentType, ok := h.readBody(c)
	if !ok {
		return
	}

	req, err := otlp.DecodeLogs(body, contentType)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to decode OTLP logs request")
		response.ValidationError(c, "invalid OTLP payload", err.Error())
		return
	}

	records, rejected := h.logsConverter.Convert(req)

	if len(records) > 0 {
		if err := h.stores.Logs.InsertBatch(c.Request.Context(), records); err != nil {
			h.logger.WithError(err).Error("Failed to store OTLP logs")
			response.InternalServerError(c, "failed to store logs")
			return
		}
	}

	ingestedRecords.WithLabelValues("logs").Add(float64(len(records)))
	rejectedRecords.WithLabelValues("logs").Add(float64(rejected))

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: int64(rejected),
			ErrorMessage:       rejectionMessage(rejected),
		}
	}
	h.respond(c, contentType, resp)
}

// HandleMetrics handles POST /v1/metrics.
func (h *OTLPHandler) HandleMetrics(c *gin.Context) {
	body, contentType, ok := h.readBody(c)
	if !ok {
		return
	}

	req, err := otlp.DecodeMetrics(body, contentType)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to decode OTLP metrics request")
		response.ValidationError(c, "invalid OTLP payload", err.Error())
		return
	}

	samples, rejected := h.metricsConv.Convert(req)

	if len(samples) > 0 {
		if err := h.stores.Metrics.InsertBatch(c.Request.Context(), samples); err != nil {
			h.logger.WithError(err).Error("Failed to store OTLP metrics")
			response.InternalServerError(c, "failed to store metrics")
			return
		}
	}

	ingestedRecords.WithLabelValues("metrics").Add(float64(len(samples)))
	rejectedRecords.WithLabelValues("metrics").Add(float64(rejected))

	resp := &colmetricspb.ExportMetricsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &colmetricspb.ExportMetricsPartialSuccess{
			RejectedDataPoints: int64(rejected),
			ErrorMessage:       rejectionMessage(rejected),
		}
	}
	h.respond(c, contentType, resp)
}

// HandleTraces handles POST /v1/traces.
func (h *OTLPHandler) HandleTraces(c *gin.Context) {
	body, contentType, ok := h.readBody(c)
	if !ok {
		return
	}

	req, err := otlp.DecodeTraces(body, contentType)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to decode OTLP traces request")
		response.ValidationError(c, "invalid OTLP payload", err.Error())
		return
	}

	spans, rejected := h.tracesConv.Convert(req)

	if len(spans) > 0 {
		if err := h.stores.Traces.InsertBatch(c.Request.Context(), spans); err != nil {
			h.logger.WithError(err).Error("Failed to store OTLP spans")
			response.InternalServerError(c, "failed to store spans")
			return
		}
	}

	ingestedRecords.WithLabelValues("traces").Add(float64(len(spans)))
	rejectedRecords.WithLabelValues("traces").Add(float64(rejected))

	resp := &coltracepb.ExportTraceServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &coltracepb.ExportTracePartialSuccess{
			RejectedSpans: int64(rejected),
			ErrorMessage:  rejectionMessage(rejected),
		}
	}
	h.respond(c, contentType, resp)
}
