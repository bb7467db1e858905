// Package http provides the Gin HTTP server routing the native REST API and
// the OTLP/HTTP ingestion endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/config"
	"github.com/Thomblin/heimsight/internal/transport/http/handlers"
	"github.com/Thomblin/heimsight/internal/transport/http/middleware"
)

// Server is the HTTP transport.
type Server struct {
	config   *config.Config
	logger   *logrus.Logger
	server   *http.Server
	handlers *handlers.Handlers
	engine   *gin.Engine
}

// NewServer creates the HTTP server instance.
func NewServer(cfg *config.Config, logger *logrus.Logger, h *handlers.Handlers) *Server {
	return &Server{
		config:   cfg,
		logger:   logger,
		handlers: h,
	}
}

// Start binds and serves (blocking). Signal handling lives in the app run
// group.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()

	// No credentialed requests on this API; a permissive CORS policy keeps
	// browser-based dashboards working out of the box.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-Request-ID")
	corsConfig.MaxAge = 5 * time.Minute
	s.engine.Use(cors.New(corsConfig))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.engine,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger(s.logger))
	s.engine.Use(middleware.Recovery(s.logger))
	s.engine.Use(middleware.Metrics())
	s.engine.Use(middleware.MaxRequestSize(s.config.Server.MaxRequestSize))

	// Health checks (GET and HEAD for container probes)
	s.engine.GET("/health", s.handlers.Health.Check)
	s.engine.HEAD("/health", s.handlers.Health.Check)
	s.engine.GET("/health/ready", s.handlers.Health.Ready)
	s.engine.HEAD("/health/ready", s.handlers.Health.Ready)
	s.engine.GET("/health/live", s.handlers.Health.Live)
	s.engine.HEAD("/health/live", s.handlers.Health.Live)

	// Prometheus metrics
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// OTLP/HTTP ingestion (standard collector paths)
	otlp := s.engine.Group("/v1")
	{
		otlp.POST("/logs", s.handlers.OTLP.HandleLogs)
		otlp.POST("/metrics", s.handlers.OTLP.HandleMetrics)
		otlp.POST("/traces", s.handlers.OTLP.HandleTraces)
	}

	// Native REST API
	api := s.engine.Group("/api/v1")
	{
		api.POST("/logs", s.handlers.Logs.Create)
		api.GET("/logs", s.handlers.Logs.List)

		api.POST("/metrics", s.handlers.Metrics.Create)
		api.GET("/metrics", s.handlers.Metrics.List)

		api.POST("/traces", s.handlers.Traces.Create)
		api.GET("/traces", s.handlers.Traces.List)
		api.GET("/traces/:trace_id", s.handlers.Traces.Get)

		api.POST("/query", s.handlers.Query.Execute)

		retention := api.Group("/config/retention")
		{
			retention.GET("", s.handlers.Retention.GetConfig)
			retention.PUT("", s.handlers.Retention.PutConfig)
			retention.PUT("/policy", s.handlers.Retention.PutPolicy)
			retention.GET("/metrics", s.handlers.Retention.GetMetrics)
		}
	}
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Gracefully stopping HTTP server")
	return s.server.Shutdown(ctx)
}
