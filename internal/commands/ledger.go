package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"financetracker/internal/cli"
	"financetracker/internal/core"
	apphttp "financetracker/internal/http"
	applog "financetracker/internal/log"
	"financetracker/internal/services"
	"financetracker/internal/sheets"
	"financetracker/internal/sheets/google"
	"financetracker/internal/sheets/memory"
)

const shutdownTimeout = 10 * time.Second

func newCancelCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <transaction-id>",
		Short: "Cancel a transaction by recording its reversal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(core.KindTransaction, args[0])
			if err != nil {
				return err
			}
			return rt.withApp(cmd.Context(), func(app *cli.App) error {
				reversal, err := app.Transactions.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), reversal)
			})
		},
	}
}

// summaryReport is the output of the summary command.
type summaryReport struct {
	Summary       core.SummaryMetrics `json:"summary"`
	TopBusinesses []core.GroupTotal   `json:"top_businesses"`
	TopCategories []core.GroupTotal   `json:"top_categories"`
	History       []core.HistoryPoint `json:"history"`
}

func newSummaryCommand(rt *runtime) *cobra.Command {
	var (
		accountID int64
		period    string
		top       int
		history   int
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize an account's spending for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("top") {
				top = rt.cfg.ReportTopN
			}
			if !cmd.Flags().Changed("history") {
				history = rt.cfg.ReportHistoryMonths
			}
			ctx := cmd.Context()
			return rt.withApp(ctx, func(app *cli.App) error {
				periodID, err := periodIDForCode(period, func(f core.Fields) (*core.Period, error) {
					return app.Store.Periods.FindOne(ctx, f)
				})
				if err != nil {
					return err
				}
				report, err := buildSummary(ctx, app.Summary, accountID, periodID, top, history)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 1, "account id")
	cmd.Flags().StringVar(&period, "period", "", "period code YYYYMM (default: latest with transactions)")
	cmd.Flags().IntVar(&top, "top", 0, "number of top businesses and categories (0 lists all)")
	cmd.Flags().IntVar(&history, "history", 0, "months of history to include")
	return cmd
}

func buildSummary(ctx context.Context, svc *services.SummaryService, accountID, periodID int64, top, history int) (summaryReport, error) {
	var (
		r   summaryReport
		err error
	)
	if r.Summary, err = svc.Summarize(ctx, accountID, periodID); err != nil {
		return r, err
	}
	// Pin the period so every section describes the same month.
	periodID = r.Summary.Period.ID
	if r.TopBusinesses, err = svc.TopBusinesses(ctx, accountID, periodID, top); err != nil {
		return r, err
	}
	if r.TopCategories, err = svc.TopCategories(ctx, accountID, periodID, top); err != nil {
		return r, err
	}
	if r.History, err = svc.History(ctx, accountID, periodID, history); err != nil {
		return r, err
	}
	if r.TopBusinesses == nil {
		r.TopBusinesses = []core.GroupTotal{}
	}
	if r.TopCategories == nil {
		r.TopCategories = []core.GroupTotal{}
	}
	return r, nil
}

func newReportCommand(rt *runtime) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Serve the JSON report API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = rt.cfg.Port
			}
			return rt.withApp(cmd.Context(), func(app *cli.App) error {
				logger := rt.logger.WithComponent(applog.ComponentHTTP)
				srv := apphttp.NewServer(":"+port, app.Summary, apphttp.Options{
					Ping:          app.Store.DB().PingContext,
					TopN:          rt.cfg.ReportTopN,
					HistoryMonths: rt.cfg.ReportHistoryMonths,
					Logger:        rt.logger,
				})
				_, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
					if err := srv.Shutdown(ctx); err != nil {
						logger.Error("Report server shutdown failed", applog.FieldError, err)
					}
				})

				logger.Info("Report server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("report server: %w", err)
				}
				<-done
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

// exportOutput is printed by export; Preview is only filled on a dry run.
type exportOutput struct {
	services.ExportResult
	Preview []sheets.Row `json:"preview,omitempty"`
}

func newExportCommand(rt *runtime) *cobra.Command {
	var (
		accountID int64
		period    string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a period's transactions to Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := rt.cfg

			var (
				writer sheets.TransactionWriter
				mem    *memory.Store
			)
			if dryRun {
				mem = memory.New()
				writer = mem
			} else {
				client, err := rt.sheetsClient(ctx, "export")
				if err != nil {
					return err
				}
				writer = client
			}

			return rt.withApp(ctx, func(app *cli.App) error {
				periodID, err := periodIDForCode(period, func(f core.Fields) (*core.Period, error) {
					return app.Store.Periods.FindOne(ctx, f)
				})
				if err != nil {
					return err
				}
				res, err := services.NewExportService(app.Store, writer, cfg.GoogleSheetName, rt.logger).Export(ctx, accountID, periodID)
				if err != nil {
					return err
				}
				out := exportOutput{ExportResult: res}
				if mem != nil {
					out.Preview = mem.Rows(res.Sheet)
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 1, "account id")
	cmd.Flags().StringVar(&period, "period", "", "period code YYYYMM (default: latest with transactions)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build the rows and print them without writing to Sheets")
	return cmd
}

// sheetsClient connects to the configured spreadsheet on behalf of action.
func (rt *runtime) sheetsClient(ctx context.Context, action string) (*google.Client, error) {
	cfg := rt.cfg
	if !cfg.ExportEnabled() {
		return nil, core.NewValidationError("", "GOOGLE_SPREADSHEET_ID", "is required for "+action)
	}
	return google.New(ctx, google.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
	}, rt.logger)
}

func newInitCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and seed the default account and categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd.Context(), func(app *cli.App) error {
				res, err := services.NewSeeder(app.Store, rt.logger).Seed(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}
