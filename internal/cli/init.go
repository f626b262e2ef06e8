// Package cli provides common initialization used by the finance-tracker
// commands: logging, environment, configuration and the storage and
// messaging dependencies.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financetracker/internal/amqp"
	"financetracker/internal/cache"
	"financetracker/internal/config"
	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/services"
	"financetracker/internal/storage"
)

// SetupLogger builds the stderr text logger and makes it the slog default.
// verbose forces debug level regardless of the configured one.
func SetupLogger(level string, verbose bool) (*applog.Logger, error) {
	lvl, err := applog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	cfg := applog.DefaultConfig()
	cfg.Level = lvl
	cfg.Component = applog.ComponentCLI
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the ledger database at dbPath, migrating it first.
func InitSQLite(ctx context.Context, logger *applog.Logger, dbPath string) (*storage.Store, error) {
	store, err := storage.Open(ctx, dbPath, logger)
	if err != nil {
		logger.Error("Failed to open database", applog.FieldError, err, "path", dbPath)
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	return store, nil
}

// InitAMQP connects the event publisher when AMQP is configured. It returns
// nil when AMQP is disabled or the broker is unreachable; the ledger works
// without it.
func InitAMQP(cfg *config.Config, logger *applog.Logger) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Debug("AMQP disabled")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("AMQP unavailable, continuing without events", applog.FieldError, err)
		return nil
	}
	logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// App bundles the wired services a command works with.
type App struct {
	Config       *config.Config
	Logger       *applog.Logger
	Store        *storage.Store
	Periods      *services.PeriodResolver
	Transactions *services.TransactionService
	Businesses   *services.BusinessService
	Summary      *services.SummaryService
	publisher    *amqp.Client
}

// NewApp opens storage and wires the services on top of it.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*App, error) {
	store, err := InitSQLite(ctx, logger, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	periods := services.NewPeriodResolver(store.Periods,
		cache.NewLRUCache[string, core.Period](cfg.PeriodCacheSize, 0), logger)

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Periods:    periods,
		Businesses: services.NewBusinessService(store, logger),
		Summary:    services.NewSummaryService(store, logger),
	}

	// A nil *amqp.Client must not reach the interface, or the service would
	// see a non-nil publisher.
	var publisher services.Publisher
	if client := InitAMQP(cfg, logger); client != nil {
		app.publisher = client
		publisher = client
	}
	app.Transactions = services.NewTransactionService(store, periods, publisher, logger)
	return app, nil
}

// Close releases the broker connection and the database.
func (a *App) Close() error {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
	}
	return a.Store.Close()
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs once the signal arrives, bounded by timeout.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
