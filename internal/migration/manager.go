package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalcore/internal/config"
	"signalcore/internal/core/domain/telemetry"
)

// Manager drives golang-migrate's up/down/force/steps operations against the
// single on-disk SQLite store that backs the Raw Store, Derived Store, and
// Metrics Store. Unlike the teacher's multi-database manager, there's only
// ever one target here.
type Manager struct {
	config *config.Config
	logger *logrus.Logger
	runner *migrate.Migrate
	sqlDB  *sql.DB
}

// NewManager opens the SQLite store directly (bypassing GORM, since
// golang-migrate needs a raw *sql.DB) and wires a migration runner against
// cfg.SQLite.MigrationsPath.
func NewManager(cfg *config.Config) (*Manager, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	// The migrate CLI should only print warnings/errors, regardless of the
	// configured application log level.
	logger.SetLevel(logrus.WarnLevel)

	sqlDB, err := sql.Open("sqlite3", cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite store: %w", err)
	}

	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	runner, err := migrate.NewWithDatabaseInstance(
		"file://"+cfg.SQLite.MigrationsPath,
		"sqlite3",
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration runner: %w", err)
	}

	logger.WithField("path", cfg.SQLite.MigrationsPath).Info("migration manager initialized")

	return &Manager{config: cfg, logger: logger, runner: runner, sqlDB: sqlDB}, nil
}

// MigrateUp applies all (or steps) pending up migrations.
func (m *Manager) MigrateUp(ctx context.Context, steps int, dryRun bool) error {
	if dryRun {
		version, dirty, err := m.runner.Version()
		if err != nil && err != migrate.ErrNilVersion {
			return err
		}
		m.logger.WithFields(logrus.Fields{"current_version": version, "dirty": dirty}).
			Warn("dry run: no migrations applied")
		return nil
	}

	var err error
	if steps > 0 {
		err = m.runner.Steps(steps)
	} else {
		err = m.runner.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up failed: %w", err)
	}
	return nil
}

// MigrateDown reverts steps migrations (or everything, if steps <= 0).
func (m *Manager) MigrateDown(ctx context.Context, steps int, dryRun bool) error {
	if dryRun {
		m.logger.Warn("dry run: no migrations reverted")
		return nil
	}

	var err error
	if steps > 0 {
		err = m.runner.Steps(-steps)
	} else {
		err = m.runner.Down()
	}
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate down failed: %w", err)
	}
	return nil
}

// Force sets the schema_migrations version without running any migration,
// used to clear a dirty state left by a previous failed run.
func (m *Manager) Force(version int) error {
	return m.runner.Force(version)
}

// Steps runs n migrations forward (n > 0) or backward (n < 0).
func (m *Manager) Steps(n int) error {
	err := m.runner.Steps(n)
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Drop removes every table the migration runner knows about. Used only by
// the migrate CLI's `drop` subcommand, never by the running engine.
func (m *Manager) Drop() error {
	return m.runner.Drop()
}

// GetStatus reports the current schema_migrations version and dirty bit.
func (m *Manager) GetStatus() MigrationStatus {
	version, dirty, err := m.runner.Version()
	status := MigrationStatus{
		MigrationsPath: m.config.SQLite.MigrationsPath,
	}
	if err != nil {
		if err == migrate.ErrNilVersion {
			status.Status = "healthy"
			return status
		}
		status.Status = "error"
		status.Error = err.Error()
		return status
	}

	status.CurrentVersion = version
	status.IsDirty = dirty
	if dirty {
		status.Status = "dirty"
	} else {
		status.Status = "healthy"
	}
	return status
}

// ShowStatus prints the current migration status to stdout. It writes
// directly rather than through the manager's logger, which only emits
// warnings and errors.
func (m *Manager) ShowStatus(ctx context.Context) error {
	status := m.GetStatus()
	fmt.Printf("version=%d dirty=%t status=%s\n", status.CurrentVersion, status.IsDirty, status.Status)
	return nil
}

// HealthCheck reports migration health for the readiness probe.
func (m *Manager) HealthCheck() map[string]interface{} {
	start := time.Now()
	status := m.GetStatus()
	return map[string]interface{}{
		"status":          status.Status,
		"current_version": status.CurrentVersion,
		"is_dirty":        status.IsDirty,
		"checked_at":      time.Now().UTC(),
		"response_time":   time.Since(start).String(),
	}
}

// CreateMigration is a placeholder for the migrate CLI's `create` subcommand;
// actual file creation is left to the golang-migrate binary or an editor,
// since this manager only drives already-written SQL files.
func (m *Manager) CreateMigration(name string) error {
	return fmt.Errorf("use the golang-migrate CLI to scaffold new migration files for %q under %s", name, m.config.SQLite.MigrationsPath)
}

// AutoMigrate runs GORM's struct-based auto-migration, an alternative to
// hand-written SQL migrations for local development (gated by
// cfg.SQLite.AutoMigrate). RawTrace is migrated once per platform table,
// since row_id is only unique within a single platform's table.
func (m *Manager) AutoMigrate(ctx context.Context, gormDB *gorm.DB) error {
	for _, platform := range []telemetry.Platform{telemetry.PlatformClaude, telemetry.PlatformCursor, telemetry.PlatformUnknown} {
		if err := gormDB.Table(telemetry.RawTraceTableName(platform)).AutoMigrate(&telemetry.RawTrace{}); err != nil {
			return fmt.Errorf("auto-migrate %s: %w", telemetry.RawTraceTableName(platform), err)
		}
	}
	return gormDB.AutoMigrate(
		&telemetry.Conversation{},
		&telemetry.Turn{},
		&telemetry.MetricPoint{},
		&telemetry.SessionAggregate{},
	)
}

// CanAutoMigrate reports whether auto-migration is enabled in configuration.
func (m *Manager) CanAutoMigrate() bool {
	return m.config.SQLite.AutoMigrate
}

// Shutdown closes the migration runner's database handle.
func (m *Manager) Shutdown() error {
	srcErr, dbErr := m.runner.Close()
	if dbErr != nil {
		return dbErr
	}
	return srcErr
}
