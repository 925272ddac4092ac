// Package migrations applies the Postgres events schema embedded in the binary.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

type Migrator struct {
	migrate *migrate.Migrate
	logger  *slog.Logger
}

func NewMigrator(dbConnString string, logger *slog.Logger) (*Migrator, error) {
	source, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{
		migrate: m,
		logger:  logger.With("component", "migrator"),
	}, nil
}

func (m *Migrator) Up() error {
	return m.apply("up", m.migrate.Up)
}

func (m *Migrator) Down() error {
	return m.apply("down", m.migrate.Down)
}

// Steps migrates n versions forward, or back when n is negative.
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("steps %d", n), func() error {
		return m.migrate.Steps(n)
	})
}

// apply runs one schema change. Already being at the target version is not
// an error.
func (m *Migrator) apply(direction string, run func() error) error {
	m.logger.Info("applying events schema", "direction", direction)

	err := run()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Info("events schema already current", "direction", direction)
	case err != nil:
		return fmt.Errorf("failed to migrate events schema %s: %w", direction, err)
	default:
		version, dirty, _ := m.Version()
		m.logger.Info("events schema migrated", "direction", direction, "version", version, "dirty", dirty)
	}

	return nil
}

// Version reports the applied schema version. A database that has never been
// migrated reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
