package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financetracker/internal/amqp"
	"financetracker/internal/cache"
	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/services"
	"financetracker/internal/sheets/memory"
	"financetracker/internal/storage"
)

type stubExporter struct {
	ids []int64
	err error
}

func (s *stubExporter) ExportTransaction(_ context.Context, id int64) (services.ExportResult, error) {
	s.ids = append(s.ids, id)
	if s.err != nil {
		return services.ExportResult{}, s.err
	}
	return services.ExportResult{Sheet: "2024 Transactions", Range: "A2:I2", Rows: 1}, nil
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("created and cancelled events are exported", func(t *testing.T) {
		exp := &stubExporter{}
		w := NewSyncWorker(exp, applog.Discard())

		require.NoError(t, w.HandleEvent(ctx, &amqp.TransactionEvent{Type: amqp.EventTransactionCreated, ID: 4}))
		require.NoError(t, w.HandleEvent(ctx, &amqp.TransactionEvent{Type: amqp.EventTransactionCancelled, ID: 5}))

		assert.Equal(t, []int64{4, 5}, exp.ids)
		assert.Equal(t, Stats{Synced: 2}, w.Stats())
	})

	t.Run("unknown types are skipped", func(t *testing.T) {
		exp := &stubExporter{}
		w := NewSyncWorker(exp, applog.Discard())

		require.NoError(t, w.HandleEvent(ctx, &amqp.TransactionEvent{Type: "transaction.renamed", ID: 4}))
		assert.Empty(t, exp.ids)
		assert.Equal(t, Stats{Skipped: 1}, w.Stats())
	})

	t.Run("missing transaction is permanent", func(t *testing.T) {
		w := NewSyncWorker(&stubExporter{err: core.NotFoundID(core.KindTransaction, 4)}, applog.Discard())

		err := w.HandleEvent(ctx, &amqp.TransactionEvent{Type: amqp.EventTransactionCreated, ID: 4})
		assert.True(t, errors.Is(err, amqp.ErrPermanent))
		assert.True(t, errors.Is(err, core.ErrNotFound))
		assert.Equal(t, Stats{Failed: 1}, w.Stats())
	})

	t.Run("writer failure is retried", func(t *testing.T) {
		w := NewSyncWorker(&stubExporter{err: errors.New("quota exceeded")}, applog.Discard())

		err := w.HandleEvent(ctx, &amqp.TransactionEvent{Type: amqp.EventTransactionCreated, ID: 4})
		require.Error(t, err)
		assert.False(t, errors.Is(err, amqp.ErrPermanent))
	})
}

func TestSyncWorkerWritesLedgerRows(t *testing.T) {
	ctx := context.Background()
	logger := applog.Discard()

	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "finance.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = services.NewSeeder(store, logger).Seed(ctx)
	require.NoError(t, err)

	periods := services.NewPeriodResolver(store.Periods, cache.NewLRUCache[string, core.Period](4, 0), logger)
	txs := services.NewTransactionService(store, periods, nil, logger)
	tx, err := txs.Create(ctx, core.Fields{
		core.FieldAmount:          "18.40",
		core.FieldTransactionDate: "2024-05-06",
		core.FieldAccountID:       1,
		core.FieldCategoryID:      1,
		core.FieldSubcategoryID:   1,
	})
	require.NoError(t, err)
	reversal, err := txs.Cancel(ctx, tx.ID)
	require.NoError(t, err)

	sheet := memory.New()
	w := NewSyncWorker(services.NewExportService(store, sheet, "Transactions", logger), logger)

	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCreated, tx)))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCancelled, reversal)))

	rows := sheet.Rows("2024 Transactions")
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Amount.Add(rows[1].Amount).IsZero(), "the reversal nets the row out")
	assert.Equal(t, "202405", rows[1].Period)
}
