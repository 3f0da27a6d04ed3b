package workers

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
)

// SlowPathPool is the slow-path worker pool (C6). A single dispatcher reads
// CDC deliveries off the shared consumer group and routes each one, by a
// stable hash of its session id, to one of WorkerCount partition channels.
// Because the same session always lands on the same channel, a session's
// records are always applied in order by the same goroutine even though
// Redis itself makes no per-key ordering guarantee across a consumer group.
type SlowPathPool struct {
	cdc        domain.CDCConsumer
	derivation domain.DerivationService
	cfg        config.SlowPathConfig
	consumer   string
	logger     *logrus.Logger

	lanes []chan domain.CDCDelivery
	wg    sync.WaitGroup

	recordsApplied int64
	errorsCount    int64
}

// NewSlowPathPool returns the slow-path worker pool sized to cfg.WorkerCount.
func NewSlowPathPool(cdc domain.CDCConsumer, derivation domain.DerivationService, cfg config.SlowPathConfig, consumer string, logger *logrus.Logger) *SlowPathPool {
	lanes := make([]chan domain.CDCDelivery, cfg.WorkerCount)
	for i := range lanes {
		lanes[i] = make(chan domain.CDCDelivery, 256)
	}
	return &SlowPathPool{
		cdc:        cdc,
		derivation: derivation,
		cfg:        cfg,
		consumer:   consumer,
		logger:     logger,
		lanes:      lanes,
	}
}

// Run starts WorkerCount lane goroutines plus the dispatch loop, and blocks
// until ctx is cancelled.
func (p *SlowPathPool) Run(ctx context.Context) error {
	for i := range p.lanes {
		p.wg.Add(1)
		go p.runLane(ctx, i)
	}

	defer func() {
		for _, lane := range p.lanes {
			close(lane)
		}
		p.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			deliveries, err := p.cdc.Read(ctx, p.consumer, 64, 2000)
			if err != nil {
				p.logger.WithError(err).Error("slow-path cdc read failed")
				atomic.AddInt64(&p.errorsCount, 1)
				time.Sleep(100 * time.Millisecond)
				continue
			}
			for _, d := range deliveries {
				lane := p.lanes[partitionFor(d.Record.SessionID, len(p.lanes))]
				select {
				case lane <- d:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// runLane owns one partition's worth of sessions: it applies each delivered
// record via DerivationService and acks only after a successful apply, so a
// crash mid-record simply redelivers it to whichever consumer claims it next.
func (p *SlowPathPool) runLane(ctx context.Context, index int) {
	defer p.wg.Done()
	lane := p.lanes[index]
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-lane:
			if !ok {
				return
			}
			record := d.Record
			if err := p.derivation.ApplyRecord(ctx, &record); err != nil {
				p.logger.WithFields(logrus.Fields{
					"session_id": record.SessionID,
					"raw_row_id": record.RawRowID,
				}).WithError(err).Error("derivation failed, leaving unacked for retry")
				atomic.AddInt64(&p.errorsCount, 1)
				continue
			}
			if err := p.cdc.Ack(ctx, p.consumer, d.StreamID); err != nil {
				p.logger.WithError(err).Error("failed to ack cdc delivery")
				atomic.AddInt64(&p.errorsCount, 1)
				continue
			}
			atomic.AddInt64(&p.recordsApplied, 1)
		}
	}
}

// GetStats returns current worker counters for health/metrics reporting.
func (p *SlowPathPool) GetStats() map[string]int64 {
	return map[string]int64{
		"records_applied": atomic.LoadInt64(&p.recordsApplied),
		"errors_count":    atomic.LoadInt64(&p.errorsCount),
		"worker_count":    int64(len(p.lanes)),
	}
}

// partitionFor hashes sessionID to a stable lane index in [0, count). FNV-1a
// is used purely for its speed and even distribution, not for any
// cryptographic property.
func partitionFor(sessionID string, count int) int {
	if count <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(count))
}
