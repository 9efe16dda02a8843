package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

// Migrations holds the schema for the postgres storage backend
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsPath is the directory of Migrations that holds the .sql files
const MigrationsPath = "migrations"

// RunMigrations runs all pending migrations using embedded files
func RunMigrations(databaseURL string, migrationsFS embed.FS, migrationsPath string) error {
	m, err := newEmbedded(databaseURL, migrationsFS, migrationsPath)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return logVersion(m)
}

// NewMigrator returns a migrate instance over the embedded migrations
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	return newEmbedded(databaseURL, Migrations, MigrationsPath)
}

func newEmbedded(databaseURL string, migrationsFS embed.FS, migrationsPath string) (*migrate.Migrate, error) {
	d, err := iofs.New(migrationsFS, migrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func logVersion(m *migrate.Migrate) error {
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Msg("No migrations applied yet")
	} else {
		log.Info().
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Database migration completed")
	}
	return nil
}
