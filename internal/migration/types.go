package migration

import (
	"context"

	"gorm.io/gorm"
)

// MigrationStatus represents the current schema state of the SQLite store.
type MigrationStatus struct {
	CurrentVersion  uint   `json:"current_version"`
	IsDirty         bool   `json:"is_dirty"`
	Status          string `json:"status"` // "healthy", "dirty", "error"
	Error           string `json:"error,omitempty"`
	MigrationsPath  string `json:"migrations_path"`
	TotalMigrations int    `json:"total_migrations"`
}

// DatabaseRunner is the subset of golang-migrate's *migrate.Migrate surface
// the manager drives; kept as an interface so callers don't depend directly
// on the library type.
type DatabaseRunner interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Drop() error
	Version() (uint, bool, error)
	Close() (error, error)
}

// HealthChecker reports the migration system's current health.
type HealthChecker interface {
	HealthCheck() map[string]interface{}
	GetStatus() MigrationStatus
}

// AutoMigrator drives GORM's struct-based auto-migration, used for local
// development where hand-written SQL migrations are overkill.
type AutoMigrator interface {
	AutoMigrate(ctx context.Context, gormDB *gorm.DB) error
	CanAutoMigrate() bool
}

// MigrationManager is the complete interface the migrate CLI drives against
// the single SQLite store.
type MigrationManager interface {
	MigrateUp(ctx context.Context, steps int, dryRun bool) error
	MigrateDown(ctx context.Context, steps int, dryRun bool) error

	ShowStatus(ctx context.Context) error
	GetStatus() MigrationStatus
	HealthCheck() map[string]interface{}

	CreateMigration(name string) error

	Force(version int) error
	Drop() error
	Steps(n int) error

	AutoMigrate(ctx context.Context, gormDB *gorm.DB) error
	CanAutoMigrate() bool

	Shutdown() error
}
