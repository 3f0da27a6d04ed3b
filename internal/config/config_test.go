package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServerConfig() ServerConfig {
	return ServerConfig{Host: "0.0.0.0", Port: 8090, MaxRequestSize: 2 << 20}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(sc *ServerConfig)
		wantErr bool
	}{
		{"valid", func(sc *ServerConfig) {}, false},
		{"port zero", func(sc *ServerConfig) { sc.Port = 0 }, true},
		{"port too large", func(sc *ServerConfig) { sc.Port = 70000 }, true},
		{"empty host", func(sc *ServerConfig) { sc.Host = "" }, true},
		{"non-positive max request size", func(sc *ServerConfig) { sc.MaxRequestSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := validServerConfig()
			tt.mutate(&sc)
			err := sc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSQLiteConfig_Validate(t *testing.T) {
	valid := SQLiteConfig{Path: "./data/signalcore.db", MaxOpenConns: 1}
	assert.NoError(t, valid.Validate())

	missingPath := valid
	missingPath.Path = ""
	assert.Error(t, missingPath.Validate())

	badConns := valid
	badConns.MaxOpenConns = 0
	assert.Error(t, badConns.Validate())
}

func TestRedisConfig_Validate(t *testing.T) {
	valid := RedisConfig{URL: "redis://localhost:6379/0", PoolSize: 10}
	assert.NoError(t, valid.Validate())

	missingURL := valid
	missingURL.URL = ""
	assert.Error(t, missingURL.Validate())

	badPoolSize := valid
	badPoolSize.PoolSize = 0
	assert.Error(t, badPoolSize.Validate())
}

func TestQueueConfig_Validate(t *testing.T) {
	valid := QueueConfig{MainStream: "events", DLQStream: "events.dlq", MaxRetries: 5, VisibilityTimeoutMs: 30000}
	assert.NoError(t, valid.Validate())

	missingStreams := valid
	missingStreams.DLQStream = ""
	assert.Error(t, missingStreams.Validate())

	badRetries := valid
	badRetries.MaxRetries = 0
	assert.Error(t, badRetries.Validate())

	badVisibility := valid
	badVisibility.VisibilityTimeoutMs = 0
	assert.Error(t, badVisibility.Validate())
}

func TestIngestConfig_Validate(t *testing.T) {
	valid := IngestConfig{BatchSize: 100, MinBatchSize: 5, CompressWorkers: 4}
	assert.NoError(t, valid.Validate())

	badBatchSize := valid
	badBatchSize.BatchSize = 0
	assert.Error(t, badBatchSize.Validate())

	minExceedsBatch := valid
	minExceedsBatch.MinBatchSize = 200
	assert.Error(t, minExceedsBatch.Validate())

	badWorkers := valid
	badWorkers.CompressWorkers = 0
	assert.Error(t, badWorkers.Validate())
}

func TestSlowPathConfig_Validate(t *testing.T) {
	valid := SlowPathConfig{WorkerCount: 3, Partitioning: "session_hash"}
	assert.NoError(t, valid.Validate())

	badWorkerCount := valid
	badWorkerCount.WorkerCount = 0
	assert.Error(t, badWorkerCount.Validate())

	badPartitioning := valid
	badPartitioning.Partitioning = "round_robin"
	assert.Error(t, badPartitioning.Validate())
}

func TestCompositeConfig_Validate(t *testing.T) {
	valid := CompositeConfig{IntervalSeconds: 30, LockTTLSeconds: 5}
	assert.NoError(t, valid.Validate())

	badInterval := valid
	badInterval.IntervalSeconds = 0
	assert.Error(t, badInterval.Validate())

	ttlExceedsInterval := CompositeConfig{IntervalSeconds: 5, LockTTLSeconds: 5}
	assert.Error(t, ttlExceedsInterval.Validate())
}

func TestLoggingConfig_Validate(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "ERROR"} {
		assert.NoError(t, (&LoggingConfig{Level: level}).Validate())
	}
	assert.Error(t, (&LoggingConfig{Level: "verbose"}).Validate())
}

func TestConfig_Validate_FailsFastOnFirstInvalidSection(t *testing.T) {
	cfg := &Config{
		Server:    validServerConfig(),
		SQLite:    SQLiteConfig{Path: "", MaxOpenConns: 1},
		Redis:     RedisConfig{URL: "redis://localhost:6379/0", PoolSize: 10},
		Queue:     QueueConfig{MainStream: "events", DLQStream: "events.dlq", MaxRetries: 5, VisibilityTimeoutMs: 30000},
		Ingest:    IngestConfig{BatchSize: 100, MinBatchSize: 5, CompressWorkers: 4},
		SlowPath:  SlowPathConfig{WorkerCount: 3, Partitioning: "session_hash"},
		Composite: CompositeConfig{IntervalSeconds: 30, LockTTLSeconds: 5},
		Logging:   LoggingConfig{Level: "info"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite config validation failed")
}

func TestConfig_GetServerAddress(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "0.0.0.0", Port: 8090}}
	assert.Equal(t, "0.0.0.0:8090", cfg.GetServerAddress())
}

func TestConfig_IsDevelopment_IsProduction(t *testing.T) {
	dev := &Config{Environment: "Development"}
	assert.True(t, dev.IsDevelopment())
	assert.False(t, dev.IsProduction())

	prod := &Config{Environment: "production"}
	assert.True(t, prod.IsProduction())
	assert.False(t, prod.IsDevelopment())
}

func TestLoad_UsesDefaultsWhenNoConfigFileOrEnvPresent(t *testing.T) {
	for _, key := range []string{"REDIS_URL", "SQLITE_PATH", "PORT", "ENV", "LOG_LEVEL", "LOG_FORMAT", "DATA_DIR"} {
		old, existed := os.LookupEnv(key)
		os.Unsetenv(key)
		defer func(k, v string, existed bool) {
			if existed {
				os.Setenv(k, v)
			}
		}(key, old, existed)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "signalcore", cfg.App.Name)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "events", cfg.Queue.MainStream)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.SQLite.AutoMigrate)
}
