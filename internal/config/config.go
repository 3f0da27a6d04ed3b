// Package config provides configuration management for the telemetry engine.
//
// Configuration is loaded from multiple sources in this order:
// 1. Configuration files (YAML)
// 2. Environment variables
// 3. Command line flags (if applicable)
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	SQLite      SQLiteConfig     `mapstructure:"sqlite"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Queue       QueueConfig      `mapstructure:"queue"`
	Ingest      IngestConfig     `mapstructure:"ingest"`
	SlowPath    SlowPathConfig   `mapstructure:"slow_path"`
	Composite   CompositeConfig  `mapstructure:"composite"`
	Retention   RetentionConfig  `mapstructure:"retention"`
	Archive     ArchiveConfig    `mapstructure:"archive"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Monitoring  MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level configuration.
type AppConfig struct {
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
	DataDir string `mapstructure:"data_dir"`
}

// ServerConfig contains the ingest HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
}

// SQLiteConfig contains the single on-disk relational store configuration
// that backs the Raw Store (C3), Derived Store (C7), and Metrics Store (C8).
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	BusyTimeoutMs   int           `mapstructure:"busy_timeout_ms"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig contains Redis configuration for the durable queue (C2), CDC
// fan-out (C5), and shared state (C9).
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// QueueConfig contains the durable queue (C2) tuning parameters.
type QueueConfig struct {
	MainStream          string        `mapstructure:"main_stream"`
	DLQStream           string        `mapstructure:"dlq_stream"`
	MaxLength           int64         `mapstructure:"max_length"`
	DLQMaxLength        int64         `mapstructure:"dlq_max_length"`
	VisibilityTimeoutMs int64         `mapstructure:"visibility_timeout_ms"`
	MaxRetries          int           `mapstructure:"max_retries"`
	ClaimInterval       time.Duration `mapstructure:"claim_interval"`
	ReadBlock           time.Duration `mapstructure:"read_block"`
}

// IngestConfig contains the fast-path ingestor (C4) tuning parameters.
type IngestConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeoutMs  int           `mapstructure:"batch_timeout_ms"`
	HighWatermarkMs int           `mapstructure:"high_watermark_ms"`
	CompressWorkers int           `mapstructure:"compress_workers"`
	MinBatchSize    int           `mapstructure:"min_batch_size"`
	WatermarkWindow time.Duration `mapstructure:"watermark_window"`
}

// SlowPathConfig contains the slow-path worker pool (C6) tuning parameters.
type SlowPathConfig struct {
	WorkerCount  int    `mapstructure:"worker_count"`
	Partitioning string `mapstructure:"partitioning"` // "session_hash"
	CDCStream    string `mapstructure:"cdc_stream"`
	CDCMaxLength int64  `mapstructure:"cdc_max_length"`
}

// CompositeConfig contains the composite updater (C9) tuning parameters.
type CompositeConfig struct {
	IntervalSeconds int `mapstructure:"interval_s"`
	LockTTLSeconds  int `mapstructure:"lock_ttl_s"`
}

// RetentionConfig contains per-metric-category retention windows (C8).
type RetentionConfig struct {
	RawHours      int `mapstructure:"raw_hours"`
	PerMinuteDays int `mapstructure:"per_minute_days"`
	PerHourDays   int `mapstructure:"per_hour_days"`
}

// ArchiveConfig contains optional local age-based raw-store compaction.
type ArchiveConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Path             string `mapstructure:"path"`
	RetentionDays    int    `mapstructure:"retention_days"`
	CompressionLevel int    `mapstructure:"compression_level"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// MonitoringConfig contains process-level metrics configuration.
type MonitoringConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Validate validates the main configuration and all sub-configurations.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite config validation failed: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config validation failed: %w", err)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config validation failed: %w", err)
	}
	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest config validation failed: %w", err)
	}
	if err := c.SlowPath.Validate(); err != nil {
		return fmt.Errorf("slow_path config validation failed: %w", err)
	}
	if err := c.Composite.Validate(); err != nil {
		return fmt.Errorf("composite config validation failed: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", sc.Port)
	}
	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}
	if sc.MaxRequestSize <= 0 {
		return errors.New("max_request_size must be positive")
	}
	return nil
}

func (sc *SQLiteConfig) Validate() error {
	if sc.Path == "" {
		return errors.New("path cannot be empty")
	}
	if sc.MaxOpenConns <= 0 {
		return errors.New("max_open_conns must be positive")
	}
	return nil
}

func (rc *RedisConfig) Validate() error {
	if rc.URL == "" {
		return errors.New("url cannot be empty")
	}
	if rc.PoolSize <= 0 {
		return errors.New("pool_size must be positive")
	}
	return nil
}

func (qc *QueueConfig) Validate() error {
	if qc.MainStream == "" || qc.DLQStream == "" {
		return errors.New("main_stream and dlq_stream must be set")
	}
	if qc.MaxRetries <= 0 {
		return errors.New("max_retries must be positive")
	}
	if qc.VisibilityTimeoutMs <= 0 {
		return errors.New("visibility_timeout_ms must be positive")
	}
	return nil
}

func (ic *IngestConfig) Validate() error {
	if ic.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	if ic.MinBatchSize <= 0 || ic.MinBatchSize > ic.BatchSize {
		return errors.New("min_batch_size must be positive and <= batch_size")
	}
	if ic.CompressWorkers <= 0 {
		return errors.New("compress_workers must be positive")
	}
	return nil
}

func (sc *SlowPathConfig) Validate() error {
	if sc.WorkerCount <= 0 {
		return errors.New("worker_count must be positive")
	}
	if sc.Partitioning != "session_hash" {
		return errors.New("partitioning must be session_hash")
	}
	return nil
}

func (cc *CompositeConfig) Validate() error {
	if cc.IntervalSeconds <= 0 {
		return errors.New("interval_s must be positive")
	}
	if cc.LockTTLSeconds <= 0 || cc.LockTTLSeconds >= cc.IntervalSeconds {
		return errors.New("lock_ttl_s must be positive and less than interval_s")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch strings.ToLower(lc.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}
	return nil
}

// Load reads configuration from config file, environment, and defaults.
func Load() (*Config, error) {
	// Load .env file if it exists (optional, for local development)
	_ = godotenv.Load(".env")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/signalcore")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with defaults and env vars
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	//nolint:errcheck
	viper.BindEnv("redis.url", "REDIS_URL")
	//nolint:errcheck
	viper.BindEnv("sqlite.path", "SQLITE_PATH")
	//nolint:errcheck
	viper.BindEnv("server.port", "PORT")
	//nolint:errcheck
	viper.BindEnv("server.environment", "ENV")
	//nolint:errcheck
	viper.BindEnv("logging.level", "LOG_LEVEL")
	//nolint:errcheck
	viper.BindEnv("logging.format", "LOG_FORMAT")
	//nolint:errcheck
	viper.BindEnv("app.data_dir", "DATA_DIR")
	//nolint:errcheck
	viper.BindEnv("archive.enabled", "ARCHIVE_ENABLED")
	//nolint:errcheck
	viper.BindEnv("archive.path", "ARCHIVE_PATH")

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "signalcore")
	viper.SetDefault("app.version", "dev")
	viper.SetDefault("app.data_dir", "./data")
	viper.SetDefault("environment", "development")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.read_timeout", 5*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("server.idle_timeout", 60*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("server.max_request_size", int64(2<<20)) // 2 MiB
	viper.SetDefault("server.enable_cors", false)

	viper.SetDefault("sqlite.path", "./data/signalcore.db")
	viper.SetDefault("sqlite.migrations_path", "./migrations/sqlite")
	viper.SetDefault("sqlite.busy_timeout_ms", 5000)
	viper.SetDefault("sqlite.max_open_conns", 1) // SQLite allows one writer at a time
	viper.SetDefault("sqlite.max_idle_conns", 1)
	viper.SetDefault("sqlite.conn_max_lifetime", 0)
	viper.SetDefault("sqlite.auto_migrate", true)

	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("redis.dial_timeout", 5*time.Second)
	viper.SetDefault("redis.max_retries", 3)

	viper.SetDefault("queue.main_stream", "events")
	viper.SetDefault("queue.dlq_stream", "events.dlq")
	viper.SetDefault("queue.max_length", 10000)
	viper.SetDefault("queue.dlq_max_length", 100000)
	viper.SetDefault("queue.visibility_timeout_ms", 30000)
	viper.SetDefault("queue.max_retries", 5)
	viper.SetDefault("queue.claim_interval", 10*time.Second)
	viper.SetDefault("queue.read_block", 5*time.Second)

	viper.SetDefault("ingest.batch_size", 100)
	viper.SetDefault("ingest.batch_timeout_ms", 100)
	viper.SetDefault("ingest.high_watermark_ms", 50)
	viper.SetDefault("ingest.compress_workers", 4)
	viper.SetDefault("ingest.min_batch_size", 5)
	viper.SetDefault("ingest.watermark_window", 30*time.Second)

	viper.SetDefault("slow_path.worker_count", 3)
	viper.SetDefault("slow_path.partitioning", "session_hash")
	viper.SetDefault("slow_path.cdc_stream", "cdc")
	viper.SetDefault("slow_path.cdc_max_length", 100000)

	viper.SetDefault("composite.interval_s", 30)
	viper.SetDefault("composite.lock_ttl_s", 5)

	viper.SetDefault("retention.raw_hours", 24)
	viper.SetDefault("retention.per_minute_days", 30)
	viper.SetDefault("retention.per_hour_days", 365)

	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.path", "./data/archive")
	viper.SetDefault("archive.retention_days", 90)
	viper.SetDefault("archive.compression_level", 6)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.prometheus_port", 0) // 0 = serve on main port
}

// GetServerAddress returns the host:port address for the HTTP server.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
