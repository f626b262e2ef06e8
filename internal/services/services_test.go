package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"financetracker/internal/amqp"
	"financetracker/internal/cache"
	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, evt *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

type testEnv struct {
	store        *storage.Store
	periods      *PeriodResolver
	transactions *TransactionService
	businesses   *BusinessService
	summary      *SummaryService
	publisher    *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := applog.Discard()

	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "finance.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	periods := NewPeriodResolver(store.Periods, cache.NewLRUCache[string, core.Period](16, 0), logger)
	pub := &recordingPublisher{}
	return &testEnv{
		store:        store,
		periods:      periods,
		transactions: NewTransactionService(store, periods, pub, logger),
		businesses:   NewBusinessService(store, logger),
		summary:      NewSummaryService(store, logger),
		publisher:    pub,
	}
}

// seedClassification creates account 1 "Me", category 1 "Home" with
// subcategory 1 "Rent", and category 2 "Health" with subcategory 2 "Doctor".
func (e *testEnv) seedClassification(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := e.store.Accounts.Create(ctx, core.Fields{core.FieldName: "Me"})
	require.NoError(t, err)
	for _, c := range []struct{ category, sub string }{{"Home", "Rent"}, {"Health", "Doctor"}} {
		cat, err := e.store.Categories.Create(ctx, core.Fields{core.FieldName: c.category})
		require.NoError(t, err)
		_, err = e.store.Subcategories.Create(ctx, core.Fields{core.FieldName: c.sub, core.FieldCategoryID: cat.ID})
		require.NoError(t, err)
	}
}

func (e *testEnv) addBusiness(t *testing.T, name, code string, categoryID, subcategoryID int64) core.Business {
	t.Helper()
	b, err := e.store.Businesses.Create(context.Background(), core.Fields{
		core.FieldName:                 name,
		core.FieldCode:                 code,
		core.FieldDefaultCategoryID:    categoryID,
		core.FieldDefaultSubcategoryID: subcategoryID,
	})
	require.NoError(t, err)
	return b
}

// spend records amount on date for account 1 in category/subcategory 1.
func (e *testEnv) spend(t *testing.T, amount, date string, extra core.Fields) core.Transaction {
	t.Helper()
	fields := core.Fields{
		core.FieldAmount:          amount,
		core.FieldTransactionDate: date,
		core.FieldAccountID:       1,
		core.FieldCategoryID:      1,
		core.FieldSubcategoryID:   1,
	}
	tx, err := e.transactions.Create(context.Background(), fields.Merge(extra))
	require.NoError(t, err)
	return tx
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func isKind(err, target error) bool {
	return err != nil && errors.Is(err, target)
}
