package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"financetracker/internal/amqp"
	"financetracker/internal/cli"
	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/services"
	"financetracker/internal/worker"
)

func newSyncCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror ledger events from AMQP to Google Sheets until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rt.cfg
			if cfg.AMQPURL == "" {
				return core.NewValidationError("", "AMQP_URL", "is required for sync")
			}
			writer, err := rt.sheetsClient(cmd.Context(), "sync")
			if err != nil {
				return err
			}

			return rt.withApp(cmd.Context(), func(app *cli.App) error {
				logger := rt.logger.WithComponent(applog.ComponentWorker)

				client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, rt.logger)
				if err != nil {
					return fmt.Errorf("connect to broker: %w", err)
				}
				defer client.Close()

				w := worker.NewSyncWorker(services.NewExportService(app.Store, writer, cfg.GoogleSheetName, rt.logger), rt.logger)
				ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

				logger.Info("Starting sync worker", "queue", cfg.AMQPQueue, "sheet", cfg.GoogleSheetName)
				err = client.ConsumeTransactionEvents(ctx, w.HandleEvent)
				if !errors.Is(err, context.Canceled) {
					return fmt.Errorf("consume events: %w", err)
				}
				<-done

				stats := w.Stats()
				logger.Info("Sync worker stopped",
					"synced", stats.Synced, "skipped", stats.Skipped, "failed", stats.Failed)
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}
