// Package retention implements the retention control plane: it owns the
// runtime RetentionConfig and keeps it in sync with store-side TTL.
package retention

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	domain "github.com/Thomblin/heimsight/internal/core/domain/retention"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
)

// Service owns the retention config. The mutex is held only for in-memory
// reads and swaps, never across store I/O: the backend TTL is updated first
// and the policy swapped in only after the ALTER succeeds.
type Service struct {
	mu     sync.RWMutex
	config domain.RetentionConfig

	ageMu sync.RWMutex
	age   map[domain.DataType]domain.DataAgeMetrics

	stores *telemetry.Stores
	logger *logrus.Logger
}

// NewService creates a control plane over the given stores, starting from
// the schema-time defaults.
func NewService(stores *telemetry.Stores, logger *logrus.Logger) *Service {
	return &Service{
		config: domain.DefaultConfig(),
		age:    make(map[domain.DataType]domain.DataAgeMetrics),
		stores: stores,
		logger: logger,
	}
}

// Config returns a snapshot of the current retention config.
func (s *Service) Config() domain.RetentionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Policy returns the current policy for one data type.
func (s *Service) Policy(dt domain.DataType) (domain.RetentionPolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Policy(dt)
}

func (s *Service) storeFor(dt domain.DataType) telemetry.TTLUpdater {
	switch dt {
	case domain.DataTypeLogs:
		return s.stores.Logs
	case domain.DataTypeMetrics:
		return s.stores.Metrics
	case domain.DataTypeTraces:
		return s.stores.Traces
	}
	return nil
}

// UpdatePolicy applies one policy: validate, reconfigure the backend TTL,
// then swap the in-memory policy. If the backend update fails the prior TTL
// is reissued; if that rollback also fails the policy is marked inconsistent
// and left readable.
func (s *Service) UpdatePolicy(ctx context.Context, policy domain.RetentionPolicy) error {
	if err := policy.Validate(); err != nil {
		return &domain.TTLError{
			Code:     domain.CodeTTLValidation,
			DataType: policy.DataType,
			Message:  err.Error(),
		}
	}

	prior, ok := s.Policy(policy.DataType)
	if !ok {
		return &domain.TTLError{
			Code:     domain.CodeTTLValidation,
			DataType: policy.DataType,
			Message:  "unknown data type",
		}
	}

	store := s.storeFor(policy.DataType)

	if err := store.UpdateTTL(ctx, policy.TTLDays); err != nil {
		s.logger.WithError(err).WithField("data_type", policy.DataType).
			Error("Backend TTL update failed, rolling back")

		if rbErr := store.UpdateTTL(ctx, prior.TTLDays); rbErr != nil {
			s.logger.WithError(rbErr).WithField("data_type", policy.DataType).
				Error("CRITICAL: TTL rollback failed, marking policy inconsistent")

			s.mu.Lock()
			prior.Inconsistent = true
			s.config.SetPolicy(prior)
			s.mu.Unlock()

			return &domain.TTLError{
				Code:     domain.CodeTTLRollbackFailed,
				DataType: policy.DataType,
				Message:  "backend TTL update failed and rollback failed",
				Cause:    rbErr,
			}
		}

		return &domain.TTLError{
			Code:     domain.CodeTTLAlterFailed,
			DataType: policy.DataType,
			Message:  "backend TTL update failed",
			Cause:    err,
		}
	}

	s.mu.Lock()
	policy.Inconsistent = false
	s.config.SetPolicy(policy)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"data_type": policy.DataType,
		"ttl_days":  policy.TTLDays,
	}).Info("Retention policy updated")

	return nil
}

// UpdateConfig applies a whole config per data type in the fixed order
// logs, metrics, traces. The first failure is returned naming the offending
// data type; updates applied before it stay in effect.
func (s *Service) UpdateConfig(ctx context.Context, cfg domain.RetentionConfig) error {
	for _, dt := range domain.UpdateOrder {
		policy, _ := cfg.Policy(dt)
		if policy.DataType == "" {
			policy.DataType = dt
		}
		if err := s.UpdatePolicy(ctx, policy); err != nil {
			return err
		}
	}
	return nil
}

// SetAgeMetrics records a data-age sample from the monitor.
func (s *Service) SetAgeMetrics(dt domain.DataType, m domain.DataAgeMetrics) {
	s.ageMu.Lock()
	defer s.ageMu.Unlock()
	s.age[dt] = m
}

// AgeMetrics returns the cached per-data-type age metrics. Data types never
// sampled yet report an empty store.
func (s *Service) AgeMetrics() map[domain.DataType]domain.DataAgeMetrics {
	s.ageMu.RLock()
	defer s.ageMu.RUnlock()
	out := make(map[domain.DataType]domain.DataAgeMetrics, len(s.age))
	for _, dt := range domain.UpdateOrder {
		if m, ok := s.age[dt]; ok {
			out[dt] = m
		} else {
			out[dt] = domain.DataAgeMetrics{}
		}
	}
	return out
}
