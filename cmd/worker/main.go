// Package main provides the background worker fleet entrypoint: the
// fast-path ingestor pool (C4), the slow-path derivation pool (C6), and the
// composite updater (C9), coordinated by the supervisor (C10).
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
	"signalcore/internal/version"
)

func main() {
	log.Printf("signalcore worker fleet %s starting", version.Get())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	worker, err := app.NewWorker(cfg)
	if err != nil {
		log.Fatalf("failed to initialize worker: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- worker.Start()
	}()

	log.Println("workers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("worker fleet exited unexpectedly: %v", err)
		}
	case <-quit:
		fmt.Println("shutting down workers...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := worker.Shutdown(ctx); err != nil {
		log.Printf("workers forced to shutdown: %v", err)
	}

	fmt.Println("workers stopped")
}
