package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MarkoPoloResearchLab/stockledger/internal/app"
	"github.com/MarkoPoloResearchLab/stockledger/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "stockledger: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stockledger",
		Short:         "Inventory movement ledger with per-bucket snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String(config.FlagDatabaseURL, config.DefaultDatabaseURL, "sqlite path or url, or a postgres url")
	flags.String(config.FlagDriver, config.DriverGORM, "storage adapter: gorm or pgx (pgx requires postgres)")
	flags.String(config.FlagTransactions, "auto", "transaction mode: auto, required or disabled")
	flags.String(config.FlagLogLevel, "info", "log level")

	cmd.AddCommand(
		newMigrateCommand(),
		newCatalogCommand(),
		newReceiveCommand(),
		newIssueCommand(),
		newAdjustCommand(),
		newReserveCommand(),
		newReleaseCommand(),
		newTransferCommand(),
		newRepackCommand(),
		newSnapshotCommand(),
		newLedgerCommand(),
		newAmendCommand(),
		newConsumeCommand(),
		newReconcileCommand(),
	)
	return cmd
}

// withRuntime loads configuration, opens the backend and runs fn with a
// context cancelled on SIGINT or SIGTERM.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, runtime *app.Runtime) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.Level())
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer runtime.Close()
	if err := fn(ctx, runtime); err != nil {
		logger.Debug("command failed", zap.String("command", cmd.CommandPath()), zap.Error(err))
		return err
	}
	return nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				if err := runtime.Migrate(ctx); err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"status": "migrated", "driver": runtime.Config.Driver})
			})
		},
	}
}
