package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zhirschtritt/eventapi/internal/domain"
	"github.com/zhirschtritt/eventapi/internal/ingest"
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Events API server",
	Long:          `A CRUD HTTP API over a collection of event documents, using chi for routing and cobra for CLI`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

var importOpts struct {
	file string
	ingest.Options
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(migrateCmd)

	importCmd.Flags().StringVarP(&importOpts.file, "file", "f", "-", "newline-delimited JSON file to import, - for stdin")
	importCmd.Flags().IntVar(&importOpts.BatchSize, "batch-size", 100, "events per insert statement")
	importCmd.Flags().IntVar(&importOpts.WorkerCount, "workers", 4, "concurrent insert workers")
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer()
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk load newline-delimited JSON events into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return importEvents(cmd.Context())
	},
}

func startServer() error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(config.LogLevel)
	if err != nil {
		return err
	}

	logger.Info("configuration loaded", "port", config.Port, "store_driver", config.StoreDriver, "run_migrations", config.RunMigrations)

	server, err := NewServer(config, logger)
	if err != nil {
		logger.Error("failed to initialize event store", "error", err)
		return err
	}

	return server.Start()
}

func importEvents(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := LoadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(config.LogLevel)
	if err != nil {
		return err
	}

	input := os.Stdin
	if importOpts.file != "-" {
		f, err := os.Open(importOpts.file)
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		input = f
	}

	store, err := openStore(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStartup, err)
	}
	defer store.Close()

	importer := ingest.NewImporter(domain.NewEventService(store), importOpts.Options, logger)

	result, err := importer.Import(ctx, input)
	logger.Info("import finished", "file", importOpts.file, "read", result.Read, "inserted", result.Inserted)

	return err
}
