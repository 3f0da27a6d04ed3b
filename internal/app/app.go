package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"signalcore/internal/config"
	"signalcore/pkg/logging"
)

// App wires together the HTTP ingest surface and the background worker
// fleet, depending on mode. The two run as separate processes by default
// (cmd/server, cmd/worker), matching the teacher's split.
type App struct {
	config       *config.Config
	logger       *slog.Logger
	providers    *ProviderContainer
	mode         DeploymentMode
	shutdownOnce sync.Once
}

// newSlogLogger builds the application-layer structured logger, matching
// the teacher's NewLoggerWithFormat + ParseLevel convention.
func newSlogLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLoggerWithFormat(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
}

// newLogrusLogger builds the worker/transport-layer structured logger.
// Level and format follow the same configuration as the slog logger so the
// two stay in lockstep even though they're separate libraries.
func newLogrusLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// NewServer builds an App running only the HTTP ingest surface.
func NewServer(cfg *config.Config) (*App, error) {
	core, err := ProvideCore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize core: %w", err)
	}

	server, err := ProvideServer(core)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return &App{
		mode:   ModeServer,
		config: cfg,
		logger: core.SlogLogger,
		providers: &ProviderContainer{
			Core:   core,
			Server: server,
			Mode:   ModeServer,
		},
	}, nil
}

// NewWorker builds an App running only the background worker fleet.
func NewWorker(cfg *config.Config) (*App, error) {
	core, err := ProvideCore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize core: %w", err)
	}

	workerContainer, err := ProvideWorkers(core)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workers: %w", err)
	}

	return &App{
		mode:   ModeWorker,
		config: cfg,
		logger: core.SlogLogger,
		providers: &ProviderContainer{
			Core:    core,
			Workers: workerContainer,
			Mode:    ModeWorker,
		},
	}, nil
}

// Start launches every component for the app's mode and blocks until one of
// them returns (normally only on Shutdown-triggered cancellation, or an
// unrecoverable error).
func (a *App) Start() error {
	a.logger.Info("starting signalcore", "mode", a.mode)

	var g errgroup.Group

	if a.providers.Server != nil {
		g.Go(func() error {
			return a.providers.Server.HTTPServer.Start()
		})
	}

	if a.providers.Workers != nil {
		g.Go(func() error {
			ctx := context.Background()
			a.providers.Workers.Supervisor.Start(ctx)
			return a.providers.Workers.Supervisor.Wait()
		})
	}

	return g.Wait()
}

// Shutdown gracefully stops every running component, guarded so repeated
// calls (e.g. from both a signal handler and an unexpected Start error) are
// safe.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.shutdownOnce.Do(func() {
		shutdownErr = a.doShutdown(ctx)
	})
	return shutdownErr
}

func (a *App) doShutdown(ctx context.Context) error {
	a.logger.Info("shutting down signalcore", "mode", a.mode)

	var wg sync.WaitGroup

	if a.providers.Server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.providers.Server.HTTPServer.Shutdown(ctx); err != nil {
				a.logger.Error("failed to shut down http server", "error", err)
			}
		}()
	}

	if a.providers.Workers != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.providers.Workers.Supervisor.Stop(); err != nil {
				a.logger.Error("failed to shut down workers", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.providers.Shutdown(); err != nil {
			a.logger.Error("failed to shut down providers", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("signalcore shutdown complete")
		return nil
	case <-ctx.Done():
		a.logger.Warn("shutdown timeout exceeded, forcing exit")
		return ctx.Err()
	}
}

// GetProviders returns the provider container.
func (a *App) GetProviders() *ProviderContainer {
	return a.providers
}

// Health returns the health status of every backing component.
func (a *App) Health() map[string]string {
	if a.providers != nil {
		return a.providers.HealthCheck()
	}
	return map[string]string{"status": "providers not initialized"}
}

// GetLogger returns the application-layer logger.
func (a *App) GetLogger() *slog.Logger {
	return a.logger
}

// GetConfig returns the application configuration.
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetDatabases returns the database connections.
func (a *App) GetDatabases() *DatabaseContainer {
	if a.providers == nil || a.providers.Core == nil {
		return nil
	}
	return a.providers.Core.Databases
}
