// Package rawstore implements the Raw Store (C3): one on-disk relational
// table per capture platform (claude_raw_traces, cursor_raw_traces, ...),
// each an append-heavy compressed event log keyed by a unique event_id so
// at-least-once redelivery is absorbed regardless of write order.
package rawstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/shared"
	"signalcore/pkg/ulid"
)

type gormRepository struct {
	db *gorm.DB
}

// New returns the GORM/SQLite-backed RawStoreRepository.
func New(db *gorm.DB) domain.RawStoreRepository {
	return &gormRepository{db: db}
}

func (r *gormRepository) getDB(ctx context.Context) *gorm.DB {
	return shared.GetDB(ctx, r.db)
}

// table scopes db to platform's raw-trace table.
func (r *gormRepository) table(ctx context.Context, platform domain.Platform) *gorm.DB {
	return r.getDB(ctx).WithContext(ctx).Table(domain.RawTraceTableName(platform))
}

// InsertBatch groups rows by platform (a single fast-path batch can mix
// platforms) and inserts each group via ON CONFLICT(event_id) DO NOTHING —
// the SQLite equivalent of INSERT OR IGNORE — into that platform's table. A
// row already present from a prior at-least-once delivery is detected by
// querying event_id membership before the insert; the re-read after insert
// then gives every input row (fresh or pre-existing) its committed row_id.
func (r *gormRepository) InsertBatch(ctx context.Context, rows []*domain.RawTrace) ([]int64, []bool, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}

	byPlatform := make(map[domain.Platform][]*domain.RawTrace)
	for _, row := range rows {
		byPlatform[row.Platform] = append(byPlatform[row.Platform], row)
	}

	rowIDByEventID := make(map[string]int64, len(rows))
	alreadyPresent := make(map[string]bool, len(rows))

	for platform, platformRows := range byPlatform {
		db := r.table(ctx, platform)

		eventIDs := make([]string, len(platformRows))
		for i, row := range platformRows {
			eventIDs[i] = row.EventID.String()
		}

		var preExisting []domain.RawTrace
		if err := db.Where("event_id IN ?", eventIDs).Find(&preExisting).Error; err != nil {
			return nil, nil, err
		}
		for _, e := range preExisting {
			alreadyPresent[e.EventID.String()] = true
		}

		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&platformRows).Error; err != nil {
			return nil, nil, err
		}

		var committed []domain.RawTrace
		if err := db.Where("event_id IN ?", eventIDs).Find(&committed).Error; err != nil {
			return nil, nil, err
		}
		for _, c := range committed {
			rowIDByEventID[c.EventID.String()] = c.RowID
		}
	}

	rowIDs := make([]int64, len(rows))
	duplicates := make([]bool, len(rows))
	for i, row := range rows {
		eventID := row.EventID.String()
		rowIDs[i] = rowIDByEventID[eventID]
		duplicates[i] = alreadyPresent[eventID]
	}
	return rowIDs, duplicates, nil
}

func (r *gormRepository) GetByRowID(ctx context.Context, platform domain.Platform, rowID int64) (*domain.RawTrace, error) {
	var row domain.RawTrace
	if err := r.table(ctx, platform).First(&row, "row_id = ?", rowID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrRawRowTrimmed
		}
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) GetByEventID(ctx context.Context, platform domain.Platform, eventID ulid.ULID) (*domain.RawTrace, error) {
	var row domain.RawTrace
	if err := r.table(ctx, platform).First(&row, "event_id = ?", eventID.String()).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) CompactOlderThan(ctx context.Context, platform domain.Platform, cutoff time.Time, limit int) ([]*domain.RawTrace, error) {
	var rows []*domain.RawTrace
	if err := r.table(ctx, platform).Where("timestamp < ?", cutoff).Order("row_id asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) DeleteRowIDs(ctx context.Context, platform domain.Platform, rowIDs []int64) error {
	if len(rowIDs) == 0 {
		return nil
	}
	return r.table(ctx, platform).Where("row_id IN ?", rowIDs).Delete(&domain.RawTrace{}).Error
}
