package server

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zhirschtritt/eventapi/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres events schema",
}

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrations.Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrations.Migrator) error {
					if err := m.Down(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Migrations rolled back successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Run N migrations, negative N rolls back",
			Args:  cobra.ExactArgs(1),
			// N may be negative, which would otherwise parse as a flag.
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				return withMigrator(func(m *migrations.Migrator) error {
					if err := m.Steps(n); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Migrations completed successfully (%d steps)\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrations.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return fmt.Errorf("failed to get migration version: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d, dirty: %t\n", version, dirty)
					return nil
				})
			},
		},
	)
}

func parseSteps(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("steps must be a non-zero integer, got %q", raw)
	}
	return n, nil
}

func withMigrator(fn func(m *migrations.Migrator) error) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}
	if config.StoreDriver != StoreDriverPostgres {
		return fmt.Errorf("migrations only apply to the %s store, STORE_DRIVER is %s", StoreDriverPostgres, config.StoreDriver)
	}

	logger, err := newLogger(config.LogLevel)
	if err != nil {
		return err
	}

	migrator, err := migrations.NewMigrator(config.DBConnString, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Error("could not close migrator", "error", err)
		}
	}()

	return fn(migrator)
}
