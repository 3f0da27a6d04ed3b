package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
)

// compactInterval is how often the compactor sweeps for rows past the
// retention window. A day-scale retention window doesn't need a tighter
// loop than this.
const compactInterval = time.Hour

// batchLimit bounds how many rows one sweep pulls per platform, keeping a
// single compaction pass from holding the raw table under load for long.
const batchLimit = 5000

// Compactor ticks a sweep of RawStoreRepository.CompactOlderThan, writing
// matched rows to a local Parquet file before deleting them from SQLite.
// Wired only when ArchiveConfig.Enabled is true; this is the teacher's
// S3-archival ParquetWriter/ArchiveService pair given a fully local home.
type Compactor struct {
	rawStore domain.RawStoreRepository
	codec    domain.Codec
	writer   *ParquetWriter
	cfg      config.ArchiveConfig
	logger   *logrus.Logger
}

// NewCompactor returns the archive compactor.
func NewCompactor(rawStore domain.RawStoreRepository, codec domain.Codec, cfg config.ArchiveConfig, logger *logrus.Logger) *Compactor {
	return &Compactor{
		rawStore: rawStore,
		codec:    codec,
		writer:   NewParquetWriter(cfg.CompressionLevel),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, sweeping every platform on a fixed interval, until ctx is
// cancelled.
func (c *Compactor) Run(ctx context.Context) error {
	if !c.cfg.Enabled {
		<-ctx.Done()
		return nil
	}

	if err := os.MkdirAll(c.cfg.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	ticker := time.NewTicker(compactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, platform := range []domain.Platform{domain.PlatformClaude, domain.PlatformCursor, domain.PlatformUnknown} {
				if err := c.sweepOnce(ctx, platform); err != nil {
					c.logger.WithError(err).WithField("platform", platform).Error("archive sweep failed")
				}
			}
		}
	}
}

// sweepOnce compacts one platform's rows older than the retention window.
func (c *Compactor) sweepOnce(ctx context.Context, platform domain.Platform) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -c.cfg.RetentionDays)

	rows, err := c.rawStore.CompactOlderThan(ctx, platform, cutoff, batchLimit)
	if err != nil {
		return fmt.Errorf("query rows to compact: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	records := make([]Record, 0, len(rows))
	rowIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		eventJSON := ""
		if event, decodeErr := c.codec.Decode(row.EventData); decodeErr == nil {
			if raw, marshalErr := json.Marshal(event); marshalErr == nil {
				eventJSON = string(raw)
			}
		} else {
			c.logger.WithError(decodeErr).WithField("row_id", row.RowID).Warn("failed to decode raw row for archival, archiving without payload")
		}

		records = append(records, Record{
			RowID:      row.RowID,
			EventID:    row.EventID.String(),
			Platform:   string(row.Platform),
			SessionID:  row.SessionID,
			EventType:  string(row.EventType),
			Timestamp:  row.Timestamp,
			EventJSON:  eventJSON,
			ArchivedAt: time.Now().UTC(),
		})
		rowIDs = append(rowIDs, row.RowID)
	}

	data, err := c.writer.WriteRecords(records)
	if err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}

	path := c.filePath(platform, rows[0].Timestamp)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write archive file %s: %w", path, err)
	}

	if err := c.rawStore.DeleteRowIDs(ctx, platform, rowIDs); err != nil {
		return fmt.Errorf("delete compacted rows: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"platform": platform,
		"rows":     len(rows),
		"path":     path,
	}).Info("compacted raw rows to parquet archive")
	return nil
}

// filePath names one sweep's file after the platform and the day of its
// first row, appending a timestamp so two sweeps on the same day never
// overwrite each other. One file can hold rows from more than one day.
func (c *Compactor) filePath(platform domain.Platform, ts time.Time) string {
	name := fmt.Sprintf("%s_%s_%d.parquet", platform, ts.UTC().Format("2006-01-02"), time.Now().UnixNano())
	return filepath.Join(c.cfg.Path, name)
}
