// Package workers holds detached background tasks.
package workers

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	domain "github.com/Thomblin/heimsight/internal/core/domain/retention"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/retention"
)

// ttlGraceFactor is the slack on top of the configured TTL before the
// monitor warns about over-aged data.
const ttlGraceFactor = 1.1

// DataAgeMonitor periodically samples count/oldest/newest per data type,
// feeds the retention service's age cache, and warns when the oldest data
// exceeds its TTL plus grace.
type DataAgeMonitor struct {
	stores    *telemetry.Stores
	retention *retention.Service
	interval  time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewDataAgeMonitor creates the monitor with the configured cadence.
func NewDataAgeMonitor(
	stores *telemetry.Stores,
	retentionSvc *retention.Service,
	interval time.Duration,
	logger *slog.Logger,
) *DataAgeMonitor {
	return &DataAgeMonitor{
		stores:    stores,
		retention: retentionSvc,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs one immediate collection, then schedules the periodic task,
// and blocks until the context is cancelled.
func (m *DataAgeMonitor) Start(ctx context.Context) error {
	m.Collect(ctx)

	m.cron = cron.New()
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.interval), func() {
		m.Collect(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule data-age monitor: %w", err)
	}

	m.logger.Info("Starting data-age monitor", "interval", m.interval)
	m.cron.Start()

	<-ctx.Done()

	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
	m.logger.Info("Data-age monitor stopped")
	return nil
}

// Collect samples all three data types concurrently and updates the cache.
func (m *DataAgeMonitor) Collect(ctx context.Context) {
	readers := map[domain.DataType]telemetry.AgeReader{
		domain.DataTypeLogs:    m.stores.Logs,
		domain.DataTypeMetrics: m.stores.Metrics,
		domain.DataTypeTraces:  m.stores.Traces,
	}

	g, gctx := errgroup.WithContext(ctx)
	for dt, reader := range readers {
		g.Go(func() error {
			metrics, err := collectOne(gctx, reader)
			if err != nil {
				m.logger.Warn("Data-age collection failed", "data_type", dt, "error", err)
				return nil
			}
			m.retention.SetAgeMetrics(dt, metrics)
			m.checkAge(dt, metrics)
			return nil
		})
	}
	_ = g.Wait()
}

func collectOne(ctx context.Context, reader telemetry.AgeReader) (domain.DataAgeMetrics, error) {
	count, err := reader.Count(ctx)
	if err != nil {
		return domain.DataAgeMetrics{}, err
	}
	if count == 0 {
		return domain.DataAgeMetrics{}, nil
	}

	oldest, err := reader.OldestTimestamp(ctx)
	if err != nil {
		return domain.DataAgeMetrics{}, err
	}
	newest, err := reader.NewestTimestamp(ctx)
	if err != nil {
		return domain.DataAgeMetrics{}, err
	}

	return domain.DataAgeMetrics{Count: count, OldestTs: oldest, NewestTs: newest}, nil
}

// checkAge warns when now - oldest exceeds the TTL plus 10% grace.
func (m *DataAgeMonitor) checkAge(dt domain.DataType, metrics domain.DataAgeMetrics) {
	if metrics.OldestTs == nil {
		return
	}

	policy, ok := m.retention.Policy(dt)
	if !ok {
		return
	}

	age := time.Since(time.Unix(0, *metrics.OldestTs))
	allowed := time.Duration(float64(policy.TTLDays) * ttlGraceFactor * 24 * float64(time.Hour))

	if age > allowed {
		m.logger.Warn("Data exceeds retention TTL",
			"data_type", dt,
			"oldest_age", age,
			"ttl_days", policy.TTLDays,
			"count", metrics.Count,
		)
	}
}
