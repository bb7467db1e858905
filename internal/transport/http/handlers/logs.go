package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/pkg/response"
)

// LogsHandler serves the native log ingest and query endpoints.
type LogsHandler struct {
	stores *telemetry.Stores
	logger *logrus.Logger
}

// Create handles POST /api/v1/logs with a single record or a batch. The
// valid subset always commits; invalid records are reported per index.
func (h *LogsHandler) Create(c *gin.Context) {
	records, err := decodeSingleOrBatch[telemetry.LogRecord](c)
	if err != nil {
		response.BadRequest(c, "invalid request", err.Error())
		return
	}

	valid, errs := splitValid(records)

	if len(valid) > 0 {
		if err := h.stores.Logs.InsertBatch(c.Request.Context(), valid); err != nil {
			h.logger.WithError(err).Error("Failed to insert log batch")
			response.InternalServerError(c, "failed to store logs")
			return
		}
	}

	ingestedRecords.WithLabelValues("logs").Add(float64(len(valid)))
	rejectedRecords.WithLabelValues("logs").Add(float64(len(errs)))

	respondIngest(c, len(valid), errs)
}

// List handles GET /api/v1/logs.
func (h *LogsHandler) List(c *gin.Context) {
	filter, err := parseLogFilter(c)
	if err != nil {
		response.BadRequest(c, "invalid filter", err.Error())
		return
	}

	logs, total, err := h.stores.Logs.Query(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query logs")
		response.ServiceUnavailable(c, "log query failed")
		return
	}

	response.Success(c, gin.H{"logs": logs, "total": total})
}

func parseLogFilter(c *gin.Context) (telemetry.LogFilter, error) {
	filter := telemetry.LogFilter{
		Level:    c.Query("level"),
		Service:  c.Query("service"),
		Contains: c.Query("contains"),
	}

	var err error
	if filter.StartTime, err = parseInt64Query(c, "start_time"); err != nil {
		return filter, err
	}
	if filter.EndTime, err = parseInt64Query(c, "end_time"); err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset, err = parsePagination(c)
	return filter, err
}

func parseInt64Query(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parsePagination(c *gin.Context) (int, int, error) {
	limit, offset := 100, 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, errInvalidPagination(raw)
		}
		limit = v
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, errInvalidPagination(raw)
		}
		offset = v
	}
	if limit > 10000 {
		limit = 10000
	}
	return limit, offset, nil
}

type paginationError string

func (e paginationError) Error() string {
	return "invalid pagination value " + strconv.Quote(string(e))
}

func errInvalidPagination(raw string) error { return paginationError(raw) }
