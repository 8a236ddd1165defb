package db

import (
	"embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"

	"github.com/j-veylop/flightwatch/internal/logger"
)

// LatestMigrationVersion is the newest schema version shipped with the
// binary.
//
// NOTE: This MUST be updated when a new migration is added.
const LatestMigrationVersion uint = 2

// ErrMigrationDowngrade is returned when the database was written by a newer
// binary.
var ErrMigrationDowngrade = errors.New("database downgrade detected")

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLogger adapts the package logger to migrate.Logger.
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...any) {
	logger.Debug(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

func (migrationLogger) Verbose() bool {
	return false
}

// migrate brings the schema up to LatestMigrationVersion.
func (db *DB) migrate() error {
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := httpfs.New(http.FS(migrationFS), "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("migrations", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrationLogger{}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %d, manual intervention required", version)
	}
	if version > LatestMigrationVersion {
		return fmt.Errorf("%w: db_version=%d latest=%d", ErrMigrationDowngrade, version, LatestMigrationVersion)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
