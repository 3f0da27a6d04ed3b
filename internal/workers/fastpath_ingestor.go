package workers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
)

// FastPathIngestor is the fast-path worker: it pulls batches off the
// durable queue's consumer group, runs them through IngestService, then
// publishes CDC records for every committed row, acks everything that
// landed (fresh or duplicate), and routes schema-invalid entries to the
// DLQ. It also runs a periodic claim sweep to pick up entries abandoned
// by a crashed consumer.
type FastPathIngestor struct {
	queue     domain.Queue
	cdc       domain.CDCPublisher
	ingest    domain.IngestService
	dlq       domain.DLQRepository
	cfg       config.QueueConfig
	ingestCfg config.IngestConfig
	consumer  string
	logger    *logrus.Logger

	currentBatchSize int64
	batchesProcessed int64
	eventsProcessed  int64
	errorsCount      int64
	running          int64
}

// NewFastPathIngestor returns the fast-path ingestion worker.
func NewFastPathIngestor(
	queue domain.Queue,
	cdc domain.CDCPublisher,
	ingest domain.IngestService,
	dlq domain.DLQRepository,
	cfg config.QueueConfig,
	ingestCfg config.IngestConfig,
	consumer string,
	logger *logrus.Logger,
) *FastPathIngestor {
	return &FastPathIngestor{
		queue:            queue,
		cdc:              cdc,
		ingest:           ingest,
		dlq:              dlq,
		cfg:              cfg,
		ingestCfg:        ingestCfg,
		consumer:         consumer,
		logger:           logger,
		currentBatchSize: int64(ingestCfg.BatchSize),
	}
}

// Run drives the ingest loop until ctx is cancelled. EnsureGroup is called
// once up front so a fresh deployment doesn't need an external setup step.
func (w *FastPathIngestor) Run(ctx context.Context) error {
	atomic.StoreInt64(&w.running, 1)
	defer atomic.StoreInt64(&w.running, 0)

	if err := w.queue.EnsureGroup(ctx, w.cfg.MainStream, "fastpath"); err != nil {
		return err
	}

	claimTicker := time.NewTicker(w.cfg.ClaimInterval)
	defer claimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-claimTicker.C:
			w.sweepStale(ctx)
		default:
			if err := w.consumeOnce(ctx); err != nil {
				w.logger.WithError(err).Error("fast-path batch failed")
				atomic.AddInt64(&w.errorsCount, 1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

// consumeOnce reads one batch, ingests it, and fans out the result. A
// transaction failure on IngestBatch leaves the batch unacked, so the claim
// sweep picks it up again once its visibility timeout has passed.
func (w *FastPathIngestor) consumeOnce(ctx context.Context) error {
	batchSize := atomic.LoadInt64(&w.currentBatchSize)
	entries, err := w.queue.ReadGroup(ctx, w.cfg.MainStream, "fastpath", w.consumer, batchSize, w.cfg.ReadBlock.Milliseconds())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return w.processBatch(ctx, entries)
}

// processBatch ingests entries, routes invalid ones to the DLQ, publishes
// CDC records for committed ones, and acks both.
func (w *FastPathIngestor) processBatch(ctx context.Context, entries []domain.QueueEntry) error {
	committed, invalid, err := w.ingest.IngestBatch(ctx, entries)
	if err != nil {
		w.adjustBatchSize(false)
		return err
	}
	w.adjustBatchSize(true)

	if err := w.routeInvalid(ctx, invalid); err != nil {
		w.logger.WithError(err).Error("failed to route invalid entries to dlq")
	}

	if err := w.publishCDC(ctx, committed); err != nil {
		// CDC publish failure: do not ack, so the batch redelivers and
		// the raw rows (already committed, idempotent on retry) get a
		// second chance to reach the CDC stream.
		return err
	}

	return w.ackAll(ctx, committed, invalid)
}

// adjustBatchSize implements the backpressure rule: halve the in-flight
// batch size (down to a floor) on transaction failure, and let it recover
// by one step on success, so a struggling raw store sheds load quickly but
// throughput climbs back up gradually rather than in one jump.
func (w *FastPathIngestor) adjustBatchSize(success bool) {
	current := atomic.LoadInt64(&w.currentBatchSize)
	if success {
		if max := int64(w.ingestCfg.BatchSize); current < max {
			atomic.CompareAndSwapInt64(&w.currentBatchSize, current, minInt64(current+1, max))
		}
		return
	}
	floor := int64(w.ingestCfg.MinBatchSize)
	atomic.CompareAndSwapInt64(&w.currentBatchSize, current, maxInt64(current/2, floor))
}

func (w *FastPathIngestor) publishCDC(ctx context.Context, committed []domain.CommittedEntry) error {
	if len(committed) == 0 {
		return nil
	}
	records := make([]*domain.CDCRecord, len(committed))
	for i, c := range committed {
		records[i] = &domain.CDCRecord{
			RawRowID:  c.RowID,
			Platform:  c.Entry.Event.Platform,
			SessionID: c.Entry.Event.SessionID(),
			EventType: c.Entry.Event.EventType,
			Timestamp: c.Entry.Event.Timestamp,
		}
	}
	return w.cdc.Publish(ctx, records)
}

func (w *FastPathIngestor) routeInvalid(ctx context.Context, invalid []domain.InvalidEntry) error {
	for _, entry := range invalid {
		event := entry.Entry.Event
		if err := w.dlq.Move(ctx, &event, entry.ErrorCode, entry.Reason); err != nil {
			return err
		}
	}
	return nil
}

func (w *FastPathIngestor) ackAll(ctx context.Context, committed []domain.CommittedEntry, invalid []domain.InvalidEntry) error {
	ids := make([]string, 0, len(committed)+len(invalid))
	for _, c := range committed {
		ids = append(ids, c.Entry.StreamID)
	}
	for _, i := range invalid {
		ids = append(ids, i.Entry.StreamID)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := w.queue.Ack(ctx, w.cfg.MainStream, "fastpath", ids...); err != nil {
		return err
	}
	atomic.AddInt64(&w.batchesProcessed, 1)
	atomic.AddInt64(&w.eventsProcessed, int64(len(committed)))
	return nil
}

// sweepStale reclaims entries whose visibility timeout has expired —
// typically left behind by a consumer that crashed mid-batch or by a failed
// transaction — and runs them through processBatch again; entries whose
// retry_count exceeds max_retries go to the DLQ instead.
func (w *FastPathIngestor) sweepStale(ctx context.Context) {
	entries, err := w.queue.ClaimStale(ctx, w.cfg.MainStream, "fastpath", w.consumer, w.cfg.VisibilityTimeoutMs)
	if err != nil {
		w.logger.WithError(err).Warn("claim stale sweep failed")
		return
	}
	if len(entries) == 0 {
		return
	}
	var retry []domain.QueueEntry
	for _, entry := range entries {
		if entry.Event.RetryCount > w.cfg.MaxRetries {
			if err := w.dlq.Move(ctx, &entry.Event, "TRANSIENT_IO_ERROR", "exceeded max_retries after reclaim"); err != nil {
				w.logger.WithError(err).Error("failed to dlq exhausted entry")
				continue
			}
			_ = w.queue.Ack(ctx, w.cfg.MainStream, "fastpath", entry.StreamID)
			continue
		}
		retry = append(retry, entry)
	}
	w.logger.WithField("count", len(entries)).Info("reclaimed stale fast-path entries")
	if len(retry) > 0 {
		if err := w.processBatch(ctx, retry); err != nil {
			w.logger.WithError(err).Error("reprocessing reclaimed fast-path entries failed")
		}
	}
}

// GetStats returns current worker counters for health/metrics reporting.
func (w *FastPathIngestor) GetStats() map[string]int64 {
	return map[string]int64{
		"batches_processed": atomic.LoadInt64(&w.batchesProcessed),
		"events_processed":  atomic.LoadInt64(&w.eventsProcessed),
		"errors_count":      atomic.LoadInt64(&w.errorsCount),
		"current_batch":     atomic.LoadInt64(&w.currentBatchSize),
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
