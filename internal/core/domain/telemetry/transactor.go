package telemetry

import "context"

// Transactor opens the single write transaction the fast path requires.
// Repositories pull the active transaction out of ctx via
// infrastructure/shared.GetDB, so callers never see a *gorm.DB directly.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
