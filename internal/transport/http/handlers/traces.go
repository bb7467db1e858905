package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/pkg/response"
)

// TracesHandler serves the native span ingest and trace query endpoints.
type TracesHandler struct {
	stores *telemetry.Stores
	logger *logrus.Logger
}

// Create handles POST /api/v1/traces with a single span or a batch.
func (h *TracesHandler) Create(c *gin.Context) {
	spans, err := decodeSingleOrBatch[telemetry.Span](c)
	if err != nil {
		response.BadRequest(c, "invalid request", err.Error())
		return
	}

	valid, errs := splitValid(spans)

	if len(valid) > 0 {
		if err := h.stores.Traces.InsertBatch(c.Request.Context(), valid); err != nil {
			h.logger.WithError(err).Error("Failed to insert span batch")
			response.InternalServerError(c, "failed to store spans")
			return
		}
	}

	ingestedRecords.WithLabelValues("traces").Add(float64(len(valid)))
	rejectedRecords.WithLabelValues("traces").Add(float64(len(errs)))

	respondIngest(c, len(valid), errs)
}

// List handles GET /api/v1/traces: matching spans grouped into traces.
func (h *TracesHandler) List(c *gin.Context) {
	filter := telemetry.TraceFilter{
		Service: c.Query("service"),
		Status:  c.Query("status"),
	}

	var err error
	if filter.StartTime, err = parseInt64Query(c, "start_time"); err != nil {
		response.BadRequest(c, "invalid filter", err.Error())
		return
	}
	if filter.EndTime, err = parseInt64Query(c, "end_time"); err != nil {
		response.BadRequest(c, "invalid filter", err.Error())
		return
	}
	if filter.MinDurationNs, err = parseInt64Query(c, "min_duration_ns"); err != nil {
		response.BadRequest(c, "invalid filter", err.Error())
		return
	}
	if filter.MaxDurationNs, err = parseInt64Query(c, "max_duration_ns"); err != nil {
		response.BadRequest(c, "invalid filter", err.Error())
		return
	}
	if filter.Limit, filter.Offset, err = parsePagination(c); err != nil {
		response.BadRequest(c, "invalid filter", err.Error())
		return
	}

	spans, total, err := h.stores.Traces.Query(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query spans")
		response.ServiceUnavailable(c, "trace query failed")
		return
	}

	response.Success(c, gin.H{
		"traces": telemetry.GroupTraces(spans),
		"total":  total,
	})
}

// Get handles GET /api/v1/traces/:trace_id.
func (h *TracesHandler) Get(c *gin.Context) {
	traceID := c.Param("trace_id")

	trace, err := h.stores.Traces.GetTrace(c.Request.Context(), traceID)
	if err != nil {
		if errors.Is(err, telemetry.ErrTraceNotFound) {
			response.NotFound(c, "trace not found")
			return
		}
		h.logger.WithError(err).WithField("trace_id", traceID).Error("Failed to load trace")
		response.ServiceUnavailable(c, "trace lookup failed")
		return
	}

	response.Success(c, trace)
}
