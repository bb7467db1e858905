package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/pkg/response"
)

// MetricsHandler serves the native metric ingest and query endpoints.
type MetricsHandler struct {
	stores *telemetry.Stores
	logger *logrus.Logger
}

// Create handles POST /api/v1/metrics with a single sample or a batch.
func (h *MetricsHandler) Create(c *gin.Context) {
	samples, err := decodeSingleOrBatch[telemetry.Metric](c)
	if err != nil {
		response.BadRequest(c, "invalid request", err.Error())
		return
	}

	valid, errs := splitValid(samples)

	if len(valid) > 0 {
		if err := h.stores.Metrics.InsertBatch(c.Request.Context(), valid); err != nil {
			h.logger.WithError(err).Error("Failed to insert metric batch")
			response.InternalServerError(c, "failed to store metrics")
			return
		}
	}

	ingestedRecords.WithLabelValues("metrics").Add(float64(len(valid)))
	rejectedRecords.WithLabelValues("metrics").Add(float64(len(errs)))

	respondIngest(c, len(valid), errs)
}

// List handles GET /api/v1/metrics. Label filters use label.<key>=<value>
// query parameters.
func (h *MetricsHandler) List(c *gin.Context) {
	filter := telemetry.MetricFilter{
		Name: c.Query("name"),
		Type: c.Query("type"),
	}

	for key, values := range c.Request.URL.Query() {
		if k, ok := strings.CutPrefix(key, "label."); ok && len(values) > 0 {
			if filter.Labels == nil {
				filter.Labels = make(map[string]string)
			}
			filter.Labels[k] = values[0]
		}
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
	if filter.Limit, filter.Offset, err = parsePagination(c); err != nil {
		response.BadRequest(c, "invalid filter", err.Error())
		return
	}

	metrics, total, err := h.stores.Metrics.Query(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query metrics")
		response.ServiceUnavailable(c, "metric query failed")
		return
	}

	response.Success(c, gin.H{"metrics": metrics, "total": total})
}
