package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
)

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Append(ctx context.Context, stream string, event *domain.Event) (string, error) {
	args := m.Called(ctx, stream, event)
	return args.String(0), args.Error(1)
}

func (m *mockQueue) ReadGroup(ctx context.Context, stream, group, consumer string, count, blockMs int64) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, stream, group, consumer, count, blockMs)
	return args.Get(0).([]domain.QueueEntry), args.Error(1)
}

func (m *mockQueue) Ack(ctx context.Context, stream, group string, streamIDs ...string) error {
	args := m.Called(ctx, stream, group, streamIDs)
	return args.Error(0)
}

func (m *mockQueue) ClaimStale(ctx context.Context, stream, group, consumer string, minIdleMs int64) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, stream, group, consumer, minIdleMs)
	return args.Get(0).([]domain.QueueEntry), args.Error(1)
}

func (m *mockQueue) EnsureGroup(ctx context.Context, stream, group string) error {
	return m.Called(ctx, stream, group).Error(0)
}

func (m *mockQueue) Trim(ctx context.Context, stream string, maxLength int64) error {
	return m.Called(ctx, stream, maxLength).Error(0)
}

func (m *mockQueue) Len(ctx context.Context, stream string) (int64, error) {
	args := m.Called(ctx, stream)
	return args.Get(0).(int64), args.Error(1)
}

func testCore(t *testing.T, cfg *config.Config) *CoreContainer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &CoreContainer{
		Config:       cfg,
		SlogLogger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		LogrusLogger: logger,
		Databases:    &DatabaseContainer{},
		Repos:        &RepositoryContainer{DLQ: nil},
		Services: &ServiceContainer{
			Queue: &mockQueue{},
		},
	}
}

func TestProvideWorkers_BuildsOneFastPathIngestorPerCompressWorker(t *testing.T) {
	cfg := &config.Config{
		Ingest:    config.IngestConfig{CompressWorkers: 3, BatchSize: 100, MinBatchSize: 10},
		Queue:     config.QueueConfig{MainStream: "events", DLQStream: "events.dlq", MaxRetries: 5, VisibilityTimeoutMs: 30000},
		SlowPath:  config.SlowPathConfig{WorkerCount: 2, Partitioning: "session_hash", CDCStream: "cdc"},
		Composite: config.CompositeConfig{IntervalSeconds: 30, LockTTLSeconds: 5},
		Archive:   config.ArchiveConfig{Enabled: false},
	}

	core := testCore(t, cfg)
	workerContainer, err := ProvideWorkers(core)

	require.NoError(t, err)
	require.NotNil(t, workerContainer.Supervisor)
}

func TestProvideWorkers_ClampsCompressWorkersBelowOneToOne(t *testing.T) {
	cfg := &config.Config{
		Ingest:    config.IngestConfig{CompressWorkers: 0, BatchSize: 100, MinBatchSize: 10},
		Queue:     config.QueueConfig{MainStream: "events", DLQStream: "events.dlq", MaxRetries: 5, VisibilityTimeoutMs: 30000},
		SlowPath:  config.SlowPathConfig{WorkerCount: 1, Partitioning: "session_hash", CDCStream: "cdc"},
		Composite: config.CompositeConfig{IntervalSeconds: 30, LockTTLSeconds: 5},
	}

	core := testCore(t, cfg)
	workerContainer, err := ProvideWorkers(core)

	require.NoError(t, err)
	require.NotNil(t, workerContainer.Supervisor)
}

func TestProviderContainer_HealthCheck_ReportsNotInitializedWithoutCore(t *testing.T) {
	pc := &ProviderContainer{}
	health := pc.HealthCheck()
	assert.Equal(t, "not initialized", health["status"])
}

func TestProviderContainer_Shutdown_NoopWithoutDatabases(t *testing.T) {
	pc := &ProviderContainer{}
	assert.NoError(t, pc.Shutdown())
}

func TestApp_Health_ReportsNotInitializedWithoutProviders(t *testing.T) {
	a := &App{}
	health := a.Health()
	assert.Equal(t, "providers not initialized", health["status"])
}

func TestApp_GetDatabases_NilWithoutProviders(t *testing.T) {
	a := &App{}
	assert.Nil(t, a.GetDatabases())
}
