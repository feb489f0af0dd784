package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the embedded migrations for the manager's driver.
func (m *Manager) Migrate() error {
	m.logger.Info("Starting database migrations", zap.String("driver", m.driver))

	source, err := iofs.New(migrationsFS, "migrations/"+m.driver)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	defer source.Close()

	var (
		driver migratedb.Driver
		// closeMigrator is false when the migrate driver owns the shared handle.
		closeMigrator bool
	)

	switch m.driver {
	case DriverPostgres:
		// A separate connection keeps the migrator from closing the main pool.
		migrationDB, err := sql.Open(DriverPostgres, m.config.URL)
		if err != nil {
			return fmt.Errorf("failed to create migration connection: %w", err)
		}
		defer migrationDB.Close()

		driver, err = postgres.WithInstance(migrationDB, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("failed to create migration driver: %w", err)
		}
		closeMigrator = true
	case DriverSQLite:
		// The sqlite driver closes the handle it is given, and an in-memory
		// database only exists on that handle, so it is never closed here.
		driver, err = sqlite.WithInstance(m.db, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("failed to create migration driver: %w", err)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", m.driver)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, m.driver, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if closeMigrator {
		defer migrator.Close()
	}

	currentVersion, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", currentVersion)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to get new migration version: %w", err)
	}

	m.logger.Info("Migrations completed successfully",
		zap.Uint("from_version", currentVersion),
		zap.Uint("to_version", newVersion),
	)

	return nil
}
