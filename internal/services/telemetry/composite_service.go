package telemetry

import (
	"context"
	"log/slog"
	"time"

	domain "signalcore/internal/core/domain/telemetry"
)

// compositeService computes global composite metrics from shared-state
// counters on a fixed cadence, guarded by a TTL lock so exactly one
// composite updater instance does the work at a time. Cost is fixed
// regardless of session count: it reads a small, constant set of global
// counters rather than scanning sessions.
type compositeService struct {
	sharedState domain.SharedStateRepository
	metrics     domain.MetricsStoreRepository
	lockKey     string
	lockTTL     time.Duration
	logger      *slog.Logger
}

// NewCompositeService returns the CompositeService bound to the given lock
// TTL; lockTTL should be comfortably shorter than the updater's tick
// interval so a crashed holder's lock expires before the next tick.
func NewCompositeService(sharedState domain.SharedStateRepository, metrics domain.MetricsStoreRepository, lockTTL time.Duration, logger *slog.Logger) domain.CompositeService {
	return &compositeService{
		sharedState: sharedState,
		metrics:     metrics,
		lockKey:     domain.SharedKeyCompositeLock,
		lockTTL:     lockTTL,
		logger:      logger,
	}
}

// RunOnce attempts the lock; if acquired it reads the two global running
// counters the slow path maintains, folds them into process-wide composite
// metrics, records them, and stamps the last-run timestamp before releasing
// the lock. Returns ran=false, nil if another instance already holds it.
func (s *compositeService) RunOnce(ctx context.Context) (bool, error) {
	acquired, err := s.sharedState.TryLock(ctx, s.lockKey, s.lockTTL)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if err := s.sharedState.ReleaseLock(ctx, s.lockKey); err != nil {
			s.logger.Warn("failed to release composite lock", "error", err)
		}
	}()

	now := time.Now().UTC()

	totalInvocations, err := s.sharedState.GetCounter(ctx, domain.GlobalKeyToolInvocations)
	if err != nil {
		return true, err
	}
	totalAcceptances, err := s.sharedState.GetCounter(ctx, domain.GlobalKeyToolAcceptances)
	if err != nil {
		return true, err
	}

	points := []*domain.MetricPoint{
		{
			Category:  domain.MetricCategoryComposite,
			Name:      "tool_invocations_total",
			Value:     float64(totalInvocations),
			Timestamp: now,
		},
	}
	if totalInvocations > 0 {
		points = append(points, &domain.MetricPoint{
			Category:  domain.MetricCategoryComposite,
			Name:      "tool_acceptance_rate",
			Value:     float64(totalAcceptances) / float64(totalInvocations),
			Timestamp: now,
		})
	}

	if err := s.metrics.RecordBatch(ctx, points); err != nil {
		return true, err
	}

	if err := s.sharedState.SetString(ctx, domain.SharedKeyLastCompositeCalcAt, now.Format(time.RFC3339), 0); err != nil {
		return true, err
	}
	return true, nil
}
