package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/erp/invoicedesk/internal/infrastructure/config"
	"github.com/erp/invoicedesk/internal/infrastructure/logger"
	"github.com/erp/invoicedesk/internal/infrastructure/migration"
	"github.com/erp/invoicedesk/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// command is one migrate subcommand run against an open Migrator
type command struct {
	usage string
	run   func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var commands = map[string]command{
	"up":     {"up                 Apply all pending migrations", runUp},
	"down":   {"down               Roll back all migrations", runDown},
	"step":   {"step <n>           Apply n migrations (negative rolls back)", runStep},
	"status": {"status             Show the applied version and pending migrations", runStatus},
	"force":  {"force <version>    Set the version without running SQL (repairs a dirty schema)", runForce},
}

func main() {
	var (
		migrationsPath string
		configPath     string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	flag.StringVar(&configPath, "config", "", "Path to config.toml")
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
	defer func() {
		_ = logger.Sync(log)
	}()

	dir, err := resolveDir(migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations directory", zap.Error(err))
	}

	name, rest := args[0], args[1:]
	if name == "list" {
		if err := listMigrations(dir); err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(2)
	}

	m, closeFn, err := openMigrator(configPath, dir, log)
	if err != nil {
		log.Fatal("Failed to open migrator", zap.Error(err))
	}
	err = cmd.run(m, rest, log)
	closeFn()
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", name), zap.Error(err))
	}
}

// openMigrator connects to the configured postgres database
func openMigrator(configPath, dir string, log *zap.Logger) (*migration.Migrator, func(), error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver != persistence.DriverPostgres {
		return nil, nil, fmt.Errorf("driver %q: sqlite schemas are created by the server on startup", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Connected", zap.String("host", cfg.Database.Host), zap.String("dbname", cfg.Database.DBName), zap.String("migrations", dir))
	m, err := migration.New(db, dir, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	// Close on the migrator also closes db
	return m, func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}, nil
}

func runUp(m *migration.Migrator, _ []string, _ *zap.Logger) error {
	return m.Up()
}

func runDown(m *migration.Migrator, _ []string, _ *zap.Logger) error {
	return m.Down()
}

func runStep(m *migration.Migrator, args []string, _ *zap.Logger) error {
	n, err := intArg(args, "step count")
	if err != nil {
		return err
	}
	return m.Steps(n)
}

func runForce(m *migration.Migrator, args []string, _ *zap.Logger) error {
	v, err := intArg(args, "version")
	if err != nil {
		return err
	}
	return m.Force(v)
}

func runStatus(m *migration.Migrator, _ []string, log *zap.Logger) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	log.Info("Schema status",
		zap.Uint("version", st.Version),
		zap.Bool("dirty", st.Dirty),
		zap.Int("pending", len(st.Pending)),
	)
	for _, name := range st.Pending {
		fmt.Println("  pending:", name)
	}
	return nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func listMigrations(dir string) error {
	names, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no migrations in", dir)
		return nil
	}
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

// resolveDir finds the migrations in the working directory or next to the binary
func resolveDir(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	candidates := []string{defaultMigrationsPath}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return filepath.Abs(c)
		}
	}
	return "", errors.New("no migrations directory found; pass -path")
}

func printUsage() {
	lines := make([]string, 0, len(commands)+1)
	for _, name := range []string{"up", "down", "step", "status", "force"} {
		lines = append(lines, "  "+commands[name].usage)
	}
	lines = append(lines, "  list               List migration files (no database needed)")

	fmt.Fprintf(os.Stderr, `Invoice desk schema migrations (postgres)

Usage:
  migrate [flags] <command> [arguments]

Commands:
%s

Flags:
  -path string       Path to migrations directory (default: ./migrations)
  -config string     Path to config.toml (default: ./config.toml)
  -log-level string  Log level: debug, info, warn, error (default: info)

The connection is read from the database section of the config or from
DESK_DATABASE_* environment variables.
`, strings.Join(lines, "\n"))
}
