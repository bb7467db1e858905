package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Thomblin/heimsight/internal/config"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	cfg           *config.Config
	backendHealth func() error
}

// Check handles GET /health.
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"name":    h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

// Ready handles GET /health/ready: the backend must answer a ping.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.backendHealth != nil {
		if err := h.backendHealth(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
