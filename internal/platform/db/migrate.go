package db

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator opens a migrator over src (a directory of NNN_name.up.sql /
// NNN_name.down.sql pairs) against the postgres:// dsn.
func NewMigrator(src fs.FS, dsn string) (*Migrator, error) {
	source, err := iofs.New(src, ".")
	if err != nil {
		return nil, fmt.Errorf("platform/db: migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: migrate: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration. It reports false when nothing changed.
func (mg *Migrator) Up() (bool, error) {
	return changed(mg.m.Up())
}

// Down rolls back steps migrations.
func (mg *Migrator) Down(steps int) (bool, error) {
	if steps <= 0 {
		return false, errors.New("platform/db: down steps must be positive")
	}
	return changed(mg.m.Steps(-steps))
}

// Version returns the applied version and whether a failed migration left it dirty.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func changed(err error) (bool, error) {
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
