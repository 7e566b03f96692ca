package history

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/banshee-data/mushmap/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateUp runs all pending migrations up to the latest version.
// Returns nil if the schema is already at the latest version.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// Note: we don't close m here because it would close the underlying DB
	// connection. The migrate instance is garbage collected when unused.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current migration version and dirty state.
// Returns 0, false, nil if no migrations have been applied yet.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()
	if err != nil && errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// newMigrate creates a migrate instance over the embedded migration files.
func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements the migrate.Logger interface.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
