// Package migrations embeds the SQL schema for both storage drivers and applies
// it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/cory-johannsen/vowmud/internal/config"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// New returns a migrator for the given driver ("postgres" or "sqlite") and database URL.
//
// Precondition: dbURL must use the pgx5:// or sqlite:// scheme matching driver.
// Postcondition: The caller must Close the returned migrator.
func New(driver, dbURL string) (*migrate.Migrate, error) {
	if driver != config.DriverPostgres && driver != config.DriverSQLite {
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
	src, err := iofs.New(files, driver)
	if err != nil {
		return nil, fmt.Errorf("opening embedded %s migrations: %w", driver, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// Up applies every pending migration.
//
// Postcondition: Returns nil when the schema is current, including when nothing changed.
func Up(driver, dbURL string) error {
	m, err := New(driver, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// URL returns the migrate database URL for the configured storage driver.
func URL(cfg config.Config) string {
	if cfg.Storage.Driver == config.DriverSQLite {
		return SQLiteURL(cfg.Storage.SQLitePath)
	}
	return PostgresURL(cfg.Database)
}

// PostgresURL returns the pgx5:// URL golang-migrate expects for PostgreSQL.
func PostgresURL(d config.DatabaseConfig) string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

// SQLiteURL returns the sqlite:// URL golang-migrate expects for a database file.
func SQLiteURL(path string) string {
	return "sqlite://" + path
}
