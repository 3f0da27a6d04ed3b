package workers

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	domain "signalcore/internal/core/domain/telemetry"
)

// Runner is satisfied by every long-lived worker loop in this package.
type Runner interface {
	Run(ctx context.Context) error
}

// Supervisor starts every pipeline worker under one errgroup so that a
// fatal error in any of them cancels the rest and Wait returns that error,
// and brings them all down together on graceful shutdown.
type Supervisor struct {
	fastPath  []Runner
	slowPath  *SlowPathPool
	composite *CompositeUpdater
	archiver  Runner // nil when archival compaction is disabled
	dlq       domain.DLQRepository
	logger    *logrus.Logger

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewSupervisor returns a Supervisor wired to the given workers. fastPath
// holds one FastPathIngestor per configured consumer; slowPath and
// composite are always singletons per process. archiver may be nil — its
// own Run loop blocks on ctx.Done when archival compaction is disabled, but
// callers that never wire one (e.g. tests) can pass nil instead.
func NewSupervisor(fastPath []*FastPathIngestor, slowPath *SlowPathPool, composite *CompositeUpdater, archiver Runner, dlq domain.DLQRepository, logger *logrus.Logger) *Supervisor {
	runners := make([]Runner, len(fastPath))
	for i, f := range fastPath {
		runners[i] = f
	}
	return &Supervisor{
		fastPath:  runners,
		slowPath:  slowPath,
		composite: composite,
		archiver:  archiver,
		dlq:       dlq,
		logger:    logger,
	}
}

// Start launches every worker loop as a goroutine under a shared errgroup
// and returns immediately; call Wait to block until one fails or Stop is
// called.
func (s *Supervisor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	s.group = group

	for _, f := range s.fastPath {
		f := f
		group.Go(func() error { return f.Run(groupCtx) })
	}
	group.Go(func() error { return s.slowPath.Run(groupCtx) })
	group.Go(func() error { return s.composite.Run(groupCtx) })
	if s.archiver != nil {
		group.Go(func() error { return s.archiver.Run(groupCtx) })
	}

	s.logger.WithFields(logrus.Fields{
		"fastpath_workers": len(s.fastPath),
	}).Info("pipeline supervisor started")
}

// Wait blocks until every worker loop has returned, surfacing the first
// non-nil error.
func (s *Supervisor) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Stop cancels every worker loop and waits for them to exit.
func (s *Supervisor) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	return s.Wait()
}

// ReplayDLQ is the operator-facing action that re-queues dead-lettered
// events matching filter back onto the main stream for another attempt.
func (s *Supervisor) ReplayDLQ(ctx context.Context, filter domain.DLQFilter) (int, error) {
	n, err := s.dlq.Replay(ctx, filter)
	if err != nil {
		return 0, err
	}
	s.logger.WithField("count", n).Info("replayed dlq entries")
	return n, nil
}

// Stats aggregates per-worker counters for the health/metrics surface.
func (s *Supervisor) Stats() map[string]interface{} {
	fastpathStats := make([]map[string]int64, 0, len(s.fastPath))
	for _, f := range s.fastPath {
		if ingestor, ok := f.(*FastPathIngestor); ok {
			fastpathStats = append(fastpathStats, ingestor.GetStats())
		}
	}
	return map[string]interface{}{
		"fast_path": fastpathStats,
		"slow_path": s.slowPath.GetStats(),
	}
}
