// Package migrations holds the sqlite schema for the feed cache.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed *.sql
var schema embed.FS

func migrator(dbx *sqlx.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(schema, ".")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded schema: %s", err)
	}
	drv, err := sqlite.WithInstance(dbx.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("error wrapping sqlite for migration: %s", err)
	}

	return migrate.NewWithInstance("iofs", src, "sqlite", drv)
}

// Run brings the schema up to date. A database left dirty by a failed
// migration is refused rather than migrated further.
func Run(dbx *sqlx.DB) error {
	m, err := migrator(dbx)
	if err != nil {
		return err
	}

	if _, dirty, err := m.Version(); err == nil && dirty {
		return errors.New("database schema is dirty, fix it by hand before starting")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error applying migrations: %s", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("error reading schema version: %s", err)
	}
	slog.Info("schema up to date", "version", version)

	return nil
}
