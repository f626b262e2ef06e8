package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"financetracker/internal/amqp"
	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/services"
)

// Exporter writes one stored transaction to the spreadsheet.
type Exporter interface {
	ExportTransaction(ctx context.Context, id int64) (services.ExportResult, error)
}

// Stats counts what a SyncWorker has done since it started.
type Stats struct {
	Synced  int64 `json:"synced"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
}

// SyncWorker mirrors ledger events to Google Sheets. Each created or
// cancelled transaction becomes one row; a cancellation appends the
// reversal, so the sheet nets out the same way the ledger does.
type SyncWorker struct {
	exporter Exporter
	logger   *applog.Logger

	synced  atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

func NewSyncWorker(exporter Exporter, logger *applog.Logger) *SyncWorker {
	return &SyncWorker{
		exporter: exporter,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent processes a single event from AMQP. Errors wrapping
// amqp.ErrPermanent must not be retried.
func (w *SyncWorker) HandleEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	switch evt.Type {
	case amqp.EventTransactionCreated, amqp.EventTransactionCancelled:
	default:
		w.skipped.Add(1)
		w.logger.WarnContext(ctx, "Ignoring unknown event type", "type", evt.Type, applog.FieldEntityID, evt.ID)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing transaction event",
		"type", evt.Type,
		applog.FieldEntityID, evt.ID,
		applog.FieldTransactionCode, evt.Code)

	res, err := w.exporter.ExportTransaction(ctx, evt.ID)
	if err != nil {
		w.failed.Add(1)
		// The row was deleted after the event was published.
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("sync transaction %d: %w: %w", evt.ID, amqp.ErrPermanent, err)
		}
		return fmt.Errorf("sync transaction %d: %w", evt.ID, err)
	}

	w.synced.Add(1)
	w.logger.InfoContext(ctx, "Successfully synced transaction",
		applog.FieldEntityID, evt.ID,
		"sheet", res.Sheet,
		"sheets_ref", res.Range)
	return nil
}

func (w *SyncWorker) Stats() Stats {
	return Stats{
		Synced:  w.synced.Load(),
		Skipped: w.skipped.Load(),
		Failed:  w.failed.Load(),
	}
}
