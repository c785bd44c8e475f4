package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/logger"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		dir      string
		logLevel string
	)
	flag.StringVar(&dir, "path", "", "Read migrations from this directory instead of the embedded files")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(log, dir, args); err != nil {
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func run(log *zap.Logger, dir string, args []string) error {
	command := args[0]

	// create and list work on files only
	switch command {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate create <name> [description]")
		}
		if dir == "" {
			dir = "migrations"
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		f, err := migration.Create(dir, args[1], description)
		if err != nil {
			return err
		}
		log.Info("Migration created",
			zap.Uint("version", f.Version),
			zap.String("up", f.UpPath),
			zap.String("down", f.DownPath),
		)
		return nil
	case "list":
		if dir == "" {
			dir = "migrations"
		}
		files, err := migration.List(dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%06d  %-40s down=%t\n", f.Version, f.Name, f.HasDown())
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations target postgres; database.driver is %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var opts []migration.Option
	if dir != "" {
		opts = append(opts, migration.WithDirectory(dir))
	}
	m, err := migration.New(db, log, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		if len(args) < 2 || args[1] != "-confirm" {
			return fmt.Errorf("down drops every lending table; rerun as 'migrate down -confirm'")
		}
		return m.Down()
	case "step":
		n, err := intArg(args, "step")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		v, err := intArg(args, "force")
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func intArg(args []string, command string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: migrate %s <n>", command)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[1])
	}
	return n, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Loan engine schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down -confirm         Roll back every migration
  step <n>              Apply n migrations (negative rolls back)
  version               Show the applied version
  force <version>       Mark a version applied and clear the dirty flag
  create <name> [desc]  Add an empty numbered up/down pair
  list                  List migration files

Flags:
  -path string          Migrations directory; defaults to the files built into the binary
  -log-level string     debug, info, warn or error (default info)

Database settings come from config.toml or LMS_DATABASE_* variables.`)
}
