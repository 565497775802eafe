// Package migration applies versioned schema migrations to the settings
// database. gorm's AutoMigrate covers tests and development; deployments
// run the embedded SQL through the CLI so schema changes are explicit and
// reversible.
package migration

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/postgres/*.sql
var postgresFS embed.FS

//go:embed sql/sqlite/*.sql
var sqliteFS embed.FS

// Migrator wraps golang-migrate over the embedded migration files.
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// New creates a Migrator for the database named by the URL scheme.
// Supported schemes: postgres (deployments) and sqlite (tests).
func New(databaseURL string, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var fsys embed.FS
	var dir string
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		fsys, dir = postgresFS, "sql/postgres"
	case strings.HasPrefix(databaseURL, "sqlite://"):
		fsys, dir = sqliteFS, "sql/sqlite"
	default:
		return nil, fmt.Errorf("unsupported database URL %q (want postgres:// or sqlite://)", databaseURL)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migration target: %w", err)
	}

	return &Migrator{m: m, logger: logger.With(zap.String("component", "migration"))}, nil
}

// Up applies all pending migrations. Already up to date is not an error.
func (mg *Migrator) Up() error {
	err := mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Info("schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, _, _ := mg.m.Version()
	mg.logger.Info("migrations applied", zap.Uint("version", version))
	return nil
}

// Down rolls back the most recent migration.
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	mg.logger.Info("rolled back one migration")
	return nil
}

// Version reports the current schema version. applied is false on a fresh
// database.
func (mg *Migrator) Version() (version uint, dirty, applied bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, true, nil
}

// Force overwrites the recorded version without running migrations. Only
// for recovering a dirty state.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	mg.logger.Warn("schema version forced", zap.Int("version", version))
	return nil
}

// Close releases the source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}
