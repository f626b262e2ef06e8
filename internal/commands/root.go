package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"financetracker/internal/cli"
	"financetracker/internal/config"
	applog "financetracker/internal/log"
)

// runtime carries what the persistent pre-run resolved to every subcommand.
type runtime struct {
	dbPath  string
	verbose bool

	cfg    *config.Config
	logger *applog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:   "finance-tracker",
		Short: "Personal finance ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&rt.dbPath, "database", "d", "", "path to database file (overrides FINANCE_DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "print verbose messages")

	rootCmd.AddCommand(
		newCreateCommand(rt),
		newGetCommand(rt),
		newUpdateCommand(rt),
		newDeleteCommand(rt),
		newQueryCommand(rt),
		newFieldsCommand(),
		newCancelCommand(rt),
		newSummaryCommand(rt),
		newReportCommand(rt),
		newExportCommand(rt),
		newSyncCommand(rt),
		newInitCommand(rt),
	)

	return rootCmd
}

func (rt *runtime) setup() error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if rt.dbPath != "" {
		cfg.DBPath = rt.dbPath
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, rt.verbose)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.logger = logger
	return nil
}

// withApp opens the ledger for the duration of fn.
func (rt *runtime) withApp(ctx context.Context, fn func(*cli.App) error) error {
	app, err := cli.NewApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			rt.logger.Warn("Failed to close ledger", applog.FieldError, err)
		}
	}()
	return fn(app)
}

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
