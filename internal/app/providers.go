package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/archive"
	"signalcore/internal/infrastructure/database"
	"signalcore/internal/infrastructure/repository/derivedstore"
	"signalcore/internal/infrastructure/repository/metricsstore"
	"signalcore/internal/infrastructure/repository/rawstore"
	"signalcore/internal/infrastructure/repository/sharedstate"
	"signalcore/internal/infrastructure/streams"
	"signalcore/internal/services/telemetry"
	"signalcore/internal/transport/http"
	"signalcore/internal/transport/http/handlers"
	"signalcore/internal/workers"
	"signalcore/pkg/ulid"
)

// DeploymentMode selects which half of the engine a process instance runs:
// cmd/server owns the HTTP ingest surface, cmd/worker owns the fast/slow
// path and composite-updater workers, mirroring the teacher's ModeServer/
// ModeWorker split.
type DeploymentMode string

const (
	ModeServer DeploymentMode = "server"
	ModeWorker DeploymentMode = "worker"
)

// CoreContainer holds every dependency shared between the HTTP surface and
// the background workers. Two loggers are carried deliberately: the domain
// and service layers log through *slog.Logger (matching the teacher's
// application-layer convention), while the worker and HTTP transport layers
// log through *logrus.Logger with structured fields (matching the teacher's
// queue/worker convention).
type CoreContainer struct {
	Config       *config.Config
	SlogLogger   *slog.Logger
	LogrusLogger *logrus.Logger
	Databases    *DatabaseContainer
	Repos        *RepositoryContainer
	Services     *ServiceContainer
}

// ServerContainer holds the HTTP transport.
type ServerContainer struct {
	HTTPServer *http.Server
}

// WorkerContainer holds the background worker fleet.
type WorkerContainer struct {
	Supervisor *workers.Supervisor
}

// ProviderContainer is the root DI container returned to cmd/ entrypoints.
type ProviderContainer struct {
	Core    *CoreContainer
	Server  *ServerContainer // nil in worker-only mode
	Workers *WorkerContainer // nil in server-only mode
	Mode    DeploymentMode
}

// DatabaseContainer holds the engine's two storage backends: the SQLite
// store (Raw/Derived/Metrics Stores) and the Redis client (durable queue,
// CDC fan-out, shared state).
type DatabaseContainer struct {
	Sqlite *database.SqliteDB
	Redis  *database.RedisDB
}

// RepositoryContainer holds every repository implementation.
type RepositoryContainer struct {
	RawStore    domain.RawStoreRepository
	Derived     domain.DerivedStoreRepository
	Metrics     domain.MetricsStoreRepository
	SharedState domain.SharedStateRepository
	DLQ         domain.DLQRepository
}

// ServiceContainer holds the queue, CDC channel, and the three domain
// services the HTTP surface and workers drive.
type ServiceContainer struct {
	Codec      domain.Codec
	Transactor domain.Transactor
	Queue      domain.Queue
	CDCPublish domain.CDCPublisher
	CDCConsume domain.CDCConsumer
	Ingest     domain.IngestService
	Derivation domain.DerivationService
	Composite  domain.CompositeService
}

// ProvideDatabases opens the SQLite store and the Redis client.
func ProvideDatabases(cfg *config.Config, slogLogger *slog.Logger, logrusLogger *logrus.Logger) (*DatabaseContainer, error) {
	sqlite, err := database.NewSqliteDB(cfg, slogLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	redisDB, err := database.NewRedisDB(cfg, logrusLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &DatabaseContainer{Sqlite: sqlite, Redis: redisDB}, nil
}

// ProvideServices wires the codec, queue, CDC channel, and the three domain
// services. The CDC channel is constructed once and handed out as both its
// publisher and consumer half, since streams.NewCDCChannel's concrete type
// satisfies both narrower domain interfaces over the same underlying Redis
// stream and consumer group.
func ProvideServices(cfg *config.Config, dbs *DatabaseContainer, repos *RepositoryContainer, slogLogger *slog.Logger, logrusLogger *logrus.Logger) (*ServiceContainer, error) {
	codec := telemetry.NewCodec()
	transactor := database.NewTransactor(dbs.Sqlite.DB)
	queue := streams.NewQueue(dbs.Redis, codec, logrusLogger)

	cdcChannel, err := streams.NewCDCChannel(
		dbs.Redis,
		cfg.SlowPath.CDCStream,
		"slowpath",
		cfg.SlowPath.CDCMaxLength,
		logrusLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cdc channel: %w", err)
	}

	ingest := telemetry.NewIngestService(repos.RawStore, transactor, codec, slogLogger)
	derivation := telemetry.NewDerivationService(
		repos.RawStore, repos.Derived, repos.Metrics, repos.SharedState, transactor, codec, slogLogger,
	)
	composite := telemetry.NewCompositeService(
		repos.SharedState, repos.Metrics,
		time.Duration(cfg.Composite.LockTTLSeconds)*time.Second,
		slogLogger,
	)

	return &ServiceContainer{
		Codec:      codec,
		Transactor: transactor,
		Queue:      queue,
		CDCPublish: cdcChannel,
		CDCConsume: cdcChannel,
		Ingest:     ingest,
		Derivation: derivation,
		Composite:  composite,
	}, nil
}

// ProvideRepositories wires every repository against the database
// container. The DLQ repository needs the queue (to replay back onto the
// main stream) so it's constructed after ProvideServices' queue exists;
// callers build RepositoryContainer in two steps (see ProvideCore).
func ProvideRepositories(dbs *DatabaseContainer) *RepositoryContainer {
	return &RepositoryContainer{
		RawStore:    rawstore.New(dbs.Sqlite.DB),
		Derived:     derivedstore.New(dbs.Sqlite.DB),
		Metrics:     metricsstore.New(dbs.Sqlite.DB),
		SharedState: sharedstate.New(dbs.Redis),
	}
}

// ProvideDLQRepository finishes wiring the DLQ repository once the queue
// exists.
func ProvideDLQRepository(cfg *config.Config, dbs *DatabaseContainer, codec domain.Codec, queue domain.Queue) domain.DLQRepository {
	return sharedstate.NewDLQRepository(dbs.Redis, codec, cfg.Queue.DLQStream, queue, cfg.Queue.MainStream)
}

// ProvideCore assembles the full dependency graph shared between the HTTP
// surface and the workers.
func ProvideCore(cfg *config.Config) (*CoreContainer, error) {
	slogLogger := newSlogLogger(cfg)
	logrusLogger := newLogrusLogger(cfg)

	databases, err := ProvideDatabases(cfg, slogLogger, logrusLogger)
	if err != nil {
		return nil, err
	}

	repos := ProvideRepositories(databases)

	services, err := ProvideServices(cfg, databases, repos, slogLogger, logrusLogger)
	if err != nil {
		return nil, err
	}

	repos.DLQ = ProvideDLQRepository(cfg, databases, services.Codec, services.Queue)

	return &CoreContainer{
		Config:       cfg,
		SlogLogger:   slogLogger,
		LogrusLogger: logrusLogger,
		Databases:    databases,
		Repos:        repos,
		Services:     services,
	}, nil
}

// ProvideServer wires the HTTP transport against core's services.
func ProvideServer(core *CoreContainer) (*ServerContainer, error) {
	h := handlers.NewHandlers(
		core.Config,
		core.LogrusLogger,
		core.Databases.Sqlite,
		core.Databases.Redis,
		core.Services.Queue,
		core.Repos.DLQ,
	)

	return &ServerContainer{
		HTTPServer: http.NewServer(core.Config, core.LogrusLogger, h),
	}, nil
}

// ProvideWorkers wires the fast-path ingestor pool, the slow-path worker
// pool, and the composite updater into a supervisor. The fast path runs
// one ingestor per configured ingest worker (IngestConfig.CompressWorkers
// doubles as the fast-path fan-out count, since each ingestor already owns
// its own compression inline with IngestBatch).
func ProvideWorkers(core *CoreContainer) (*WorkerContainer, error) {
	fastPathCount := core.Config.Ingest.CompressWorkers
	if fastPathCount < 1 {
		fastPathCount = 1
	}

	fastPath := make([]*workers.FastPathIngestor, 0, fastPathCount)
	for i := 0; i < fastPathCount; i++ {
		consumerID := "fastpath-" + ulid.New().String()
		fastPath = append(fastPath, workers.NewFastPathIngestor(
			core.Services.Queue,
			core.Services.CDCPublish,
			core.Services.Ingest,
			core.Repos.DLQ,
			core.Config.Queue,
			core.Config.Ingest,
			consumerID,
			core.LogrusLogger,
		))
	}

	slowPath := workers.NewSlowPathPool(
		core.Services.CDCConsume,
		core.Services.Derivation,
		core.Config.SlowPath,
		"slowpath-"+ulid.New().String(),
		core.LogrusLogger,
	)

	composite := workers.NewCompositeUpdater(core.Services.Composite, core.Config.Composite, core.LogrusLogger)

	// archiver is passed as a nil workers.Runner interface (not a typed nil
	// pointer) when disabled, so Supervisor's own nil check holds.
	var archiver workers.Runner
	if core.Config.Archive.Enabled {
		archiver = archive.NewCompactor(core.Repos.RawStore, core.Services.Codec, core.Config.Archive, core.LogrusLogger)
	}

	supervisor := workers.NewSupervisor(fastPath, slowPath, composite, archiver, core.Repos.DLQ, core.LogrusLogger)

	return &WorkerContainer{Supervisor: supervisor}, nil
}

// Shutdown closes every database connection the core container opened.
func (pc *ProviderContainer) Shutdown() error {
	if pc.Core == nil || pc.Core.Databases == nil {
		return nil
	}

	var errs []error
	if err := pc.Core.Databases.Sqlite.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sqlite: %w", err))
	}
	if err := pc.Core.Databases.Redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// HealthCheck reports the health of every backing store.
func (pc *ProviderContainer) HealthCheck() map[string]string {
	result := map[string]string{"status": "healthy"}
	if pc.Core == nil || pc.Core.Databases == nil {
		result["status"] = "not initialized"
		return result
	}

	if err := pc.Core.Databases.Sqlite.Health(); err != nil {
		result["sqlite"] = "unhealthy: " + err.Error()
		result["status"] = "unhealthy"
	} else {
		result["sqlite"] = "healthy"
	}

	if err := pc.Core.Databases.Redis.Health(); err != nil {
		result["redis"] = "unhealthy: " + err.Error()
		result["status"] = "unhealthy"
	} else {
		result["redis"] = "healthy"
	}

	return result
}
