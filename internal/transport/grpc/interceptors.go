package grpc

import (
	"context"
	"runtime"
	"time"

	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs each unary RPC with duration and status.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := codes.OK
		if err != nil {
			code = status.Code(err)
		}
		logger.Info("gRPC request",
			"method", info.FullMethod,
			"duration", time.Since(start),
			"code", code.String(),
		)
		return resp, err
	}
}

// MemoryLimiterConfig holds memory limiter configuration, following the
// OTEL Collector memory_limiter semantics: LimitMiB is the soft limit where
// rejection starts; SpikeLimitMiB is additional headroom above it.
type MemoryLimiterConfig struct {
	LimitMiB      int64
	SpikeLimitMiB int64
}

// DefaultMemoryLimiterConfig returns collector-compatible defaults.
func DefaultMemoryLimiterConfig() *MemoryLimiterConfig {
	return &MemoryLimiterConfig{
		LimitMiB:      1500,
		SpikeLimitMiB: 512,
	}
}

// MemoryLimiterInterceptor rejects requests with ResourceExhausted when the
// process heap exceeds the configured limits.
func MemoryLimiterInterceptor(cfg *MemoryLimiterConfig, logger *slog.Logger) grpc.UnaryServerInterceptor {
	if cfg == nil {
		cfg = DefaultMemoryLimiterConfig()
	}
	hardLimitMiB := cfg.LimitMiB + cfg.SpikeLimitMiB

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		usedMiB := int64(memStats.Alloc / 1024 / 1024)

		if usedMiB > cfg.LimitMiB {
			logger.Warn("Memory limit exceeded, rejecting request",
				"used_mib", usedMiB,
				"soft_limit_mib", cfg.LimitMiB,
				"hard_limit_mib", hardLimitMiB,
				"method", info.FullMethod,
			)
			return nil, status.Error(
				codes.ResourceExhausted,
				"server memory limit exceeded, try again later",
			)
		}

		return handler(ctx, req)
	}
}
