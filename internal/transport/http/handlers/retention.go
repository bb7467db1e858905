package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	domain "github.com/Thomblin/heimsight/internal/core/domain/retention"
	"github.com/Thomblin/heimsight/internal/core/services/retention"
	"github.com/Thomblin/heimsight/pkg/response"
)

// RetentionHandler serves the retention control-plane endpoints.
type RetentionHandler struct {
	service *retention.Service
	logger  *logrus.Logger
}

// GetConfig handles GET /api/v1/config/retention.
func (h *RetentionHandler) GetConfig(c *gin.Context) {
	response.Success(c, h.service.Config())
}

// PutConfig handles PUT /api/v1/config/retention with a full config.
func (h *RetentionHandler) PutConfig(c *gin.Context) {
	var cfg domain.RetentionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.BadRequest(c, "invalid retention config", err.Error())
		return
	}

	if err := h.service.UpdateConfig(c.Request.Context(), cfg); err != nil {
		h.respondTTLError(c, err)
		return
	}

	response.Success(c, h.service.Config())
}

// PutPolicy handles PUT /api/v1/config/retention/policy with one policy.
func (h *RetentionHandler) PutPolicy(c *gin.Context) {
	var policy domain.RetentionPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		response.BadRequest(c, "invalid retention policy", err.Error())
		return
	}

	if err := h.service.UpdatePolicy(c.Request.Context(), policy); err != nil {
		h.respondTTLError(c, err)
		return
	}

	updated, _ := h.service.Policy(policy.DataType)
	response.Success(c, updated)
}

// GetMetrics handles GET /api/v1/config/retention/metrics from the monitor
// cache; oldest/newest are null exactly when a store is empty.
func (h *RetentionHandler) GetMetrics(c *gin.Context) {
	response.Success(c, h.service.AgeMetrics())
}

func (h *RetentionHandler) respondTTLError(c *gin.Context, err error) {
	var ttlErr *domain.TTLError
	if !errors.As(err, &ttlErr) {
		h.logger.WithError(err).Error("Retention update failed")
		response.InternalServerError(c, "retention update failed")
		return
	}

	status := http.StatusInternalServerError
	if ttlErr.Code == domain.CodeTTLValidation {
		status = http.StatusBadRequest
	}

	h.logger.WithError(ttlErr).WithFields(logrus.Fields{
		"code":      ttlErr.Code,
		"data_type": ttlErr.DataType,
	}).Error("Retention update failed")

	c.JSON(status, response.APIResponse{
		Success: false,
		Data:    gin.H{"data_type": ttlErr.DataType},
		Error: &response.APIError{
			Code:    ttlErr.Code,
			Message: ttlErr.Message,
		},
	})
}
