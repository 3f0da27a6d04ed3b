// Package main provides the operator CLI for actions spec.md calls out as
// operator-facing but leaves the interface unspecified: listing and
// replaying dead-lettered events. Mirrors cmd/migrate's standalone-binary-
// per-operational-concern convention.
//
// Usage Examples:
//
//	go run cmd/telemetryctl/main.go list -limit 50
//	go run cmd/telemetryctl/main.go replay -platform claude
//	go run cmd/telemetryctl/main.go replay -error-code INGEST_SCHEMA_INVALID -limit 200
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"signalcore/internal/app"
	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
)

type ctlFlags struct {
	Platform  string
	ErrorCode string
	Limit     int64
}

func parseFlags(args []string) (*ctlFlags, string, error) {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" || arg == "help" {
			return nil, "help", nil
		}
	}
	if len(args) == 0 {
		return nil, "", fmt.Errorf("no command specified")
	}

	fs := flag.NewFlagSet("telemetryctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	flags := &ctlFlags{}
	fs.StringVar(&flags.Platform, "platform", "", "restrict to one platform (claude, cursor)")
	fs.StringVar(&flags.ErrorCode, "error-code", "", "restrict to entries moved with this error code")
	fs.Int64Var(&flags.Limit, "limit", 100, "maximum entries to list or replay")

	command := args[0]
	rest := args[1:]
	if err := fs.Parse(rest); err != nil {
		return nil, "", err
	}

	return flags, command, nil
}

func confirmDestructiveOperation(operation string) bool {
	fmt.Printf("about to %s.\n", operation)
	fmt.Print("Type 'yes' to confirm (anything else cancels): ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(strings.ToLower(response)) == "yes"
}

func main() {
	flags, command, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("error parsing flags: %v", err)
	}

	if command == "help" || command == "" {
		printUsage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	core, err := app.ProvideCore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize engine core: %v", err)
	}
	defer func() {
		if err := core.Databases.Sqlite.Close(); err != nil {
			log.Printf("warning: failed to close sqlite: %v", err)
		}
		if err := core.Databases.Redis.Close(); err != nil {
			log.Printf("warning: failed to close redis: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dlq := core.Repos.DLQ

	switch command {
	case "list":
		entries, err := dlq.List(ctx, flags.Limit)
		if err != nil {
			log.Fatalf("list failed: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("no dead-lettered entries")
			return
		}
		for _, e := range entries {
			fmt.Printf("%-26s platform=%-8s error=%-20s moved_at=%s reason=%s\n",
				e.Event.EventID.String(), e.Event.Platform, e.ErrorCode,
				e.MovedAt.UTC().Format(time.RFC3339), e.Reason)
		}

	case "replay":
		filter := domain.DLQFilter{
			Platform:  domain.Platform(flags.Platform),
			ErrorCode: flags.ErrorCode,
			Limit:     flags.Limit,
		}
		if !confirmDestructiveOperation("replay matching dlq entries back onto the main stream") {
			fmt.Println("cancelled")
			return
		}
		n, err := dlq.Replay(ctx, filter)
		if err != nil {
			log.Fatalf("replay failed: %v", err)
		}
		fmt.Printf("replayed %d entries\n", n)

	default:
		log.Fatalf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Println(`signalcore telemetryctl - dead-letter queue operator CLI

Usage:
  telemetryctl <command> [flags]

Commands:
  list     List pending dead-lettered entries
  replay   Re-enqueue matching entries onto the main stream (with confirmation)

Flags:
  -platform string    restrict to one platform (claude, cursor)
  -error-code string  restrict to entries moved with this error code
  -limit int          maximum entries to list or replay (default 100)`)
}
