// Package main provides the HTTP ingest surface entrypoint: POST /events,
// health/ready/live, /metrics, and the operator DLQ routes. It owns schema
// migrations, run once at startup when configured.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalcore/internal/app"
	"signalcore/internal/config"
	"signalcore/internal/migration"
	"signalcore/internal/version"
)

func main() {
	log.Printf("signalcore server %s starting", version.Get())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.SQLite.AutoMigrate {
		log.Println("running sqlite migrations...")

		migrationManager, migErr := migration.NewManager(cfg)
		if migErr != nil {
			log.Fatalf("failed to initialize migration manager: %v", migErr)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		if err := migrationManager.MigrateUp(ctx, 0, false); err != nil {
			cancel()
			log.Fatalf("migration failed: %v", err)
		}
		cancel()

		if err := migrationManager.Shutdown(); err != nil {
			log.Printf("warning: failed to shut down migration manager: %v", err)
		}

		log.Println("migrations completed")
	}

	application, err := app.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("server exited unexpectedly: %v", err)
		}
	case <-quit:
		fmt.Println("shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	fmt.Println("server stopped")
}
