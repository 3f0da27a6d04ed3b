// Package derivedstore implements the Derived Store (C7): conversations,
// turns, and session_aggregates in the same physical database as the raw
// store but separate tables. Writers: the slow-path pool only.
package derivedstore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/shared"
	"signalcore/pkg/pagination"
)

type gormRepository struct {
	db *gorm.DB
}

// New returns the GORM/SQLite-backed DerivedStoreRepository.
func New(db *gorm.DB) domain.DerivedStoreRepository {
	return &gormRepository{db: db}
}

func (r *gormRepository) getDB(ctx context.Context) *gorm.DB {
	return shared.GetDB(ctx, r.db)
}

func (r *gormRepository) GetConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.getDB(ctx).WithContext(ctx).First(&conv, "session_id = ?", sessionID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpsertConversation writes the row, relying on the caller (the derivation
// service) to have already checked raw_row_id > last_processed_row_id
// before calling — this keeps the idempotence check in one place rather
// than duplicating it as a conditional UPDATE here.
func (r *gormRepository) UpsertConversation(ctx context.Context, conv *domain.Conversation) error {
	return r.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(conv).Error
}

func (r *gormRepository) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	return r.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "turn_index"}},
		DoNothing: true,
	}).Create(turn).Error
}

func (r *gormRepository) UpsertSessionAggregate(ctx context.Context, agg *domain.SessionAggregate) error {
	return r.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(agg).Error
}

func (r *gormRepository) ListSessionsByRecency(ctx context.Context, platform domain.Platform, params pagination.Params) ([]*domain.SessionAggregate, error) {
	params.SetDefaults("last_activity_at")

	var aggs []*domain.SessionAggregate
	q := r.getDB(ctx).WithContext(ctx).Order("last_activity_at desc").
		Offset(params.GetOffset()).Limit(params.Limit)
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	if err := q.Find(&aggs).Error; err != nil {
		return nil, err
	}
	return aggs, nil
}
