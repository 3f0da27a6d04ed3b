package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"signalcore/internal/config"
)

// SqliteDB wraps the single on-disk relational store that backs the Raw
// Store, Derived Store, and Metrics Store — one file, WAL mode, one writer.
type SqliteDB struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	config *config.Config
	logger *slog.Logger
}

// NewSqliteDB opens the store, enabling WAL journaling and a busy timeout so
// concurrent readers never block the single writer.
func NewSqliteDB(cfg *config.Config, logger *slog.Logger) (*SqliteDB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		cfg.SQLite.Path, cfg.SQLite.BusyTimeoutMs)

	glogger := gormLogger.Default
	if cfg.IsDevelopment() {
		glogger = glogger.LogMode(gormLogger.Info)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 glogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// The raw store is single-writer; SQLite's WAL mode allows concurrent
	// readers but serializes writers regardless of pool size, so the pool
	// is kept small and callers serialize transactions explicitly.
	sqlDB.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.SQLite.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.SQLite.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite store: %w", err)
	}

	logger.Info("opened sqlite store", "path", cfg.SQLite.Path)

	return &SqliteDB{
		DB:     db,
		SqlDB:  sqlDB,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *SqliteDB) Close() error {
	s.logger.Info("closing sqlite store")
	return s.SqlDB.Close()
}

// Health pings the store; used by the readiness probe.
func (s *SqliteDB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.SqlDB.PingContext(ctx)
}

// GetStats returns connection pool statistics.
func (s *SqliteDB) GetStats() sql.DBStats {
	return s.SqlDB.Stats()
}
