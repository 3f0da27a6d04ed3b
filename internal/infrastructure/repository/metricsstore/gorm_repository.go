// Package metricsstore implements the Metrics Store (C8): a time-series
// table keyed by (category, name[, session_id]) with per-category retention.
package metricsstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/shared"
)

type gormRepository struct {
	db *gorm.DB
}

// New returns the GORM/SQLite-backed MetricsStoreRepository.
func New(db *gorm.DB) domain.MetricsStoreRepository {
	return &gormRepository{db: db}
}

func (r *gormRepository) getDB(ctx context.Context) *gorm.DB {
	return shared.GetDB(ctx, r.db)
}

// RecordBatch writes points, coalescing duplicate writes at the same
// (category, name, session_id, timestamp) key via an upsert rather than
// accumulating duplicate rows for the same metric tick.
func (r *gormRepository) RecordBatch(ctx context.Context, points []*domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}
	return r.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "name"}, {Name: "session_id"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&points).Error
}

func (r *gormRepository) Range(ctx context.Context, category domain.MetricCategory, name string, sessionID *string, from, to time.Time, maxPoints int) ([]*domain.MetricPoint, error) {
	var points []*domain.MetricPoint
	q := r.getDB(ctx).WithContext(ctx).
		Where("category = ? AND name = ? AND timestamp BETWEEN ? AND ?", category, name, from, to).
		Order("timestamp asc")
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	}
	if maxPoints > 0 {
		q = q.Limit(maxPoints)
	}
	if err := q.Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

func (r *gormRepository) DeleteOlderThan(ctx context.Context, category domain.MetricCategory, cutoff time.Time) (int64, error) {
	res := r.getDB(ctx).WithContext(ctx).Where("category = ? AND timestamp < ?", category, cutoff).Delete(&domain.MetricPoint{})
	return res.RowsAffected, res.Error
}
