// Package migration applies the SQL schema in migrations/ to postgres.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator wraps golang-migrate for the invoice desk schema
type Migrator struct {
	m   *migrate.Migrate
	dir string
	log *zap.Logger
}

// Status describes the schema state of the connected database
type Status struct {
	Version uint
	Dirty   bool
	// Pending lists migrations newer than Version, oldest first
	Pending []string
}

// New creates a Migrator on an open postgres connection
func New(db *sql.DB, dir string, log *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("open migrations %s: %w", dir, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{m: m, dir: dir, log: log}, nil
}

// Up applies every pending migration
func (mg *Migrator) Up() error {
	return mg.apply("up", mg.m.Up)
}

// Down rolls back every applied migration
func (mg *Migrator) Down() error {
	return mg.apply("down", mg.m.Down)
}

// Steps applies n migrations forward, or -n backward when n is negative
func (mg *Migrator) Steps(n int) error {
	if n == 0 {
		return errors.New("step count must not be zero")
	}
	return mg.apply("step "+strconv.Itoa(n), func() error { return mg.m.Steps(n) })
}

// Force records version as applied and clears the dirty flag without
// running any SQL
func (mg *Migrator) Force(version int) error {
	mg.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Version returns the applied version; 0 means a fresh database
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}

// Status reports the applied version and the migrations still to run
func (mg *Migrator) Status() (Status, error) {
	v, dirty, err := mg.Version()
	if err != nil {
		return Status{}, err
	}
	names, err := ListMigrations(mg.dir)
	if err != nil {
		return Status{}, err
	}
	return Status{Version: v, Dirty: dirty, Pending: pendingAfter(names, v)}, nil
}

// Close releases the source and the database handle of golang-migrate
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// apply runs op and treats "nothing to do" as success
func (mg *Migrator) apply(op string, run func() error) error {
	mg.log.Info("Migrating", zap.String("op", op))
	err := run()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info("Schema already up to date", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", op, err)
	}
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	mg.log.Info("Migration finished", zap.String("op", op), zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}

// ListMigrations returns the sorted base names of the up migrations in dir.
// A missing directory has no migrations.
func ListMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	return names, nil
}

// pendingAfter returns the names whose numeric prefix is above version
func pendingAfter(names []string, version uint) []string {
	pending := make([]string, 0, len(names))
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		n, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil || uint(n) > version {
			pending = append(pending, name)
		}
	}
	return pending
}
