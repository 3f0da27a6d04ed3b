// Package main provides the SQLite schema migration CLI.
//
// Usage Examples:
//
//	go run cmd/migrate/main.go up                  # run all pending migrations
//	go run cmd/migrate/main.go down -steps 1        # rollback 1 migration (with confirmation)
//	go run cmd/migrate/main.go status               # show migration status
//	go run cmd/migrate/main.go force -version 3     # force version (with confirmation)
//	go run cmd/migrate/main.go drop                 # drop all tables (with confirmation)
//	go run cmd/migrate/main.go steps -steps -1      # run 1 step backward
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

	"signalcore/internal/config"
	"signalcore/internal/migration"
)

type migrateFlags struct {
	Steps   int
	Version int
	Name    string
	DryRun  bool
}

func parseFlags(args []string) (*migrateFlags, string, error) {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" || arg == "help" {
			return nil, "help", nil
		}
	}
	if len(args) == 0 {
		return nil, "", fmt.Errorf("no command specified")
	}

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	flags := &migrateFlags{}
	fs.IntVar(&flags.Steps, "steps", 0, "number of migration steps (0 = all)")
	fs.IntVar(&flags.Version, "version", 0, "target version for force command")
	fs.StringVar(&flags.Name, "name", "", "migration name for create command")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "show what would be migrated without executing")

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return nil, "", fmt.Errorf("no command specified")
	}
	command := remaining[0]

	if len(remaining) > 1 {
		if err := fs.Parse(remaining[1:]); err != nil {
			return nil, "", err
		}
	}

	return flags, command, nil
}

func confirmDestructiveOperation(operation string) bool {
	fmt.Printf("DANGER: about to %s.\n", operation)
	fmt.Printf("This action cannot be undone and may result in data loss.\n")
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

	manager, err := migration.NewManager(cfg)
	if err != nil {
		log.Fatalf("failed to initialize migration manager: %v", err)
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Printf("warning: failed to shut down migration manager: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "up":
		if err := manager.MigrateUp(ctx, flags.Steps, flags.DryRun); err != nil {
			log.Fatalf("migrate up failed: %v", err)
		}
		fmt.Println("migrations applied")

	case "down":
		if !flags.DryRun && !confirmDestructiveOperation("roll back migrations") {
			fmt.Println("cancelled")
			return
		}
		if err := manager.MigrateDown(ctx, flags.Steps, flags.DryRun); err != nil {
			log.Fatalf("migrate down failed: %v", err)
		}
		fmt.Println("migrations rolled back")

	case "status":
		if err := manager.ShowStatus(ctx); err != nil {
			log.Fatalf("failed to show status: %v", err)
		}

	case "force":
		if !confirmDestructiveOperation(fmt.Sprintf("force schema_migrations to version %d", flags.Version)) {
			fmt.Println("cancelled")
			return
		}
		if err := manager.Force(flags.Version); err != nil {
			log.Fatalf("force failed: %v", err)
		}
		fmt.Println("version forced")

	case "drop":
		if !confirmDestructiveOperation("drop every table in the sqlite store") {
			fmt.Println("cancelled")
			return
		}
		if err := manager.Drop(); err != nil {
			log.Fatalf("drop failed: %v", err)
		}
		fmt.Println("all tables dropped")

	case "steps":
		if err := manager.Steps(flags.Steps); err != nil {
			log.Fatalf("steps failed: %v", err)
		}
		fmt.Println("steps applied")

	case "create":
		if flags.Name == "" {
			log.Fatalf("create requires -name")
		}
		if err := manager.CreateMigration(flags.Name); err != nil {
			log.Fatalf("create failed: %v", err)
		}

	default:
		log.Fatalf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Println(`signalcore migrate - SQLite schema migration CLI

Usage:
  migrate [flags] <command>

Commands:
  up       Run pending migrations (optionally -steps N)
  down     Roll back migrations (optionally -steps N)
  status   Show current schema version
  force    Force schema_migrations to -version N (clears a dirty state)
  drop     Drop every table
  steps    Run N steps forward (N > 0) or backward (N < 0)
  create   Print guidance for scaffolding a new migration file (-name)

Flags:
  -steps int      number of migration steps (0 = all)
  -version int    target version for force
  -name string    migration name for create
  -dry-run        show what would happen without executing`)
}
