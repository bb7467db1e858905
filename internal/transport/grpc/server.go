// Package grpc serves the three OTLP collector services over gRPC.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// Server wraps the gRPC server with lifecycle management.
type Server struct {
	grpcServer *grpc.Server
	host       string
	port       int
	logger     *slog.Logger
}

// NewServer creates a gRPC server for OTLP ingestion.
func NewServer(
	host string,
	port int,
	maxRequestSize int64,
	logsHandler *OTLPLogsHandler,
	metricsHandler *OTLPMetricsHandler,
	tracesHandler *OTLPTracesHandler,
	logger *slog.Logger,
) *Server {
	grpcServer := grpc.NewServer(
		// Memory limiter first so overload is rejected before logging and handler work
		grpc.ChainUnaryInterceptor(
			MemoryLimiterInterceptor(DefaultMemoryLimiterConfig(), logger),
			LoggingInterceptor(logger),
		),

		// Match the HTTP request size cap
		grpc.MaxRecvMsgSize(int(maxRequestSize)),
		grpc.MaxSendMsgSize(int(maxRequestSize)),

		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    1 * time.Minute,
			Timeout: 20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: true,
		}),
	)

	RegisterOTLPLogsService(grpcServer, logsHandler)
	RegisterOTLPMetricsService(grpcServer, metricsHandler)
	RegisterOTLPTracesService(grpcServer, tracesHandler)

	return &Server{
		grpcServer: grpcServer,
		host:       host,
		port:       port,
		logger:     logger,
	}
}

// Start begins listening and serving gRPC requests (blocking).
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	s.logger.Info("Starting gRPC OTLP server", "port", s.port)

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the gRPC server, forcing a stop when the
// context expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Gracefully stopping gRPC server")

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("Graceful shutdown timeout, forcing stop")
		s.grpcServer.Stop()
		return ctx.Err()
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
		return nil
	}
}
