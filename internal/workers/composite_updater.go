package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
)

// CompositeUpdater ticks CompositeService.RunOnce on a fixed interval (C9).
// Every process in the fleet runs one of these; the TTL lock inside
// RunOnce keeps the actual computation singleton.
type CompositeUpdater struct {
	composite domain.CompositeService
	interval  time.Duration
	logger    *logrus.Logger
}

// NewCompositeUpdater returns the composite updater worker.
func NewCompositeUpdater(composite domain.CompositeService, cfg config.CompositeConfig, logger *logrus.Logger) *CompositeUpdater {
	return &CompositeUpdater{
		composite: composite,
		interval:  time.Duration(cfg.IntervalSeconds) * time.Second,
		logger:    logger,
	}
}

// Run blocks, calling RunOnce every tick, until ctx is cancelled.
func (u *CompositeUpdater) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ran, err := u.composite.RunOnce(ctx)
			if err != nil {
				u.logger.WithError(err).Error("composite update failed")
				continue
			}
			if ran {
				u.logger.Debug("composite metrics recomputed")
			}
		}
	}
}
