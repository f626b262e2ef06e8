package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financetracker/internal/core"
	applog "financetracker/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "finance.db")
	s, err := Open(context.Background(), path, applog.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedLedger creates the account, category, subcategory and period a
// transaction needs.
func seedLedger(t *testing.T, s *Store) (account core.Account, sub core.Subcategory, period core.Period) {
	t.Helper()
	ctx := context.Background()
	var err error
	account, err = s.Accounts.Create(ctx, core.Fields{core.FieldName: "Me"})
	require.NoError(t, err)
	cat, err := s.Categories.Create(ctx, core.Fields{core.FieldName: "Home"})
	require.NoError(t, err)
	sub, err = s.Subcategories.Create(ctx, core.Fields{core.FieldName: "Rent", core.FieldCategoryID: cat.ID})
	require.NoError(t, err)
	period, err = s.Periods.Create(ctx, core.Fields{core.FieldPeriodStart: "2024-01-01"})
	require.NoError(t, err)
	return account, sub, period
}

func TestOpenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finance.db")
	s, err := Open(context.Background(), path, applog.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Reopening an up-to-date database is a no-op.
	s, err = Open(context.Background(), path, applog.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestCreateAssignsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Accounts.Create(ctx, core.Fields{core.FieldName: "Me"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, "Me", a.Name)
	assert.False(t, a.CreatedTime.IsZero())
	assert.Equal(t, a.CreatedTime, a.UpdatedTime)

	got, err := s.Accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a, *got)
}

func TestCreateIgnoresReadOnlyFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Accounts.Create(ctx, core.Fields{
		core.FieldID:          "42",
		core.FieldCreatedTime: "1999-01-01",
		core.FieldName:        "Me",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.NotEqual(t, 1999, a.CreatedTime.Year())
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Categories.Get(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateRestampsUpdatedTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.Accounts.now = func() time.Time { return clock }
	a, err := s.Accounts.Create(ctx, core.Fields{core.FieldName: "Me"})
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	arbitrary := "2000-01-01T00:00:00Z"
	updated, err := s.Accounts.Update(ctx, a.ID, core.Fields{
		core.FieldName:        "Household",
		core.FieldUpdatedTime: arbitrary,
	})
	require.NoError(t, err)

	assert.Equal(t, "Household", updated.Name)
	assert.True(t, updated.UpdatedTime.Equal(clock), "got %s", updated.UpdatedTime)
	assert.True(t, updated.CreatedTime.Equal(a.CreatedTime))
	assert.NotEqual(t, 2000, updated.UpdatedTime.Year())
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Accounts.Update(context.Background(), 7, core.Fields{core.FieldName: "x"})
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
}

func TestDeleteReturnsSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Categories.Create(ctx, core.Fields{core.FieldName: "Health"})
	require.NoError(t, err)

	deleted, err := s.Categories.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, deleted)

	got, err := s.Categories.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.Categories.Delete(ctx, c.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestDeleteReferencedRowFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Categories.Create(ctx, core.Fields{core.FieldName: "Health"})
	require.NoError(t, err)
	_, err = s.Subcategories.Create(ctx, core.Fields{core.FieldName: "Doctor", core.FieldCategoryID: c.ID})
	require.NoError(t, err)

	_, err = s.Categories.Delete(ctx, c.ID)
	assert.True(t, errors.Is(err, core.ErrValidation), "got %v", err)
}

func TestUniqueViolationIsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Categories.Create(ctx, core.Fields{core.FieldName: "Gifts"})
	require.NoError(t, err)
	_, err = s.Categories.Create(ctx, core.Fields{core.FieldName: "Gifts"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))
	assert.True(t, errors.Is(err, core.ErrDuplicate))

	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.FieldName, verr.Field)
}

func TestWithTxRollsBackEveryWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if _, err := s.Periods.CreateIn(ctx, tx, core.Fields{core.FieldPeriodStart: "2031-07-01"}); err != nil {
			return err
		}
		found, err := s.Periods.FindOneIn(ctx, tx, core.Fields{core.FieldCode: "203107"})
		require.NoError(t, err)
		require.NotNil(t, found, "the transaction sees its own writes")

		_, err = s.Subcategories.CreateIn(ctx, tx, core.Fields{core.FieldName: "Orphan", core.FieldCategoryID: 5})
		return err
	})
	assert.True(t, errors.Is(err, core.ErrValidation), "got %v", err)

	periods, err := s.Periods.Query(ctx, core.Query{})
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestWithTxSurvivesDuplicateInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if _, err := s.Categories.CreateIn(ctx, tx, core.Fields{core.FieldName: "Gifts"}); err != nil {
			return err
		}
		_, err := s.Categories.CreateIn(ctx, tx, core.Fields{core.FieldName: "Gifts"})
		require.True(t, errors.Is(err, core.ErrDuplicate), "got %v", err)

		got, err := s.Categories.UpdateIn(ctx, tx, 1, core.Fields{core.FieldName: "Presents"})
		require.NoError(t, err)
		assert.Equal(t, "Presents", got.Name)
		return nil
	})
	require.NoError(t, err)

	found, err := s.Categories.FindOne(ctx, core.Fields{core.FieldName: "Presents"})
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestMissingReferenceIsValidationError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Subcategories.Create(context.Background(), core.Fields{
		core.FieldName:       "Orphan",
		core.FieldCategoryID: 5,
	})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, core.FieldCategoryID, verr.Field)
}

func TestMissingRequiredFieldIsValidationError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Subcategories.Create(context.Background(), core.Fields{core.FieldName: "Loose"})
	assert.True(t, errors.Is(err, core.ErrValidation), "got %v", err)
}

func TestPeriodDerivesCodeAndEnd(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.Periods.Create(ctx, core.Fields{core.FieldPeriodStart: "2024-02-01"})
	require.NoError(t, err)
	assert.Equal(t, "202402", p.Code)
	assert.Equal(t, "2024-02-01", p.PeriodStart.String())
	assert.Equal(t, "2024-02-29", p.PeriodEnd.String())

	_, err = s.Periods.Create(ctx, core.Fields{core.FieldPeriodStart: "2024-02-15"})
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = s.Periods.Create(ctx, core.Fields{core.FieldPeriodStart: "2024-02-01"})
	assert.True(t, errors.Is(err, core.ErrDuplicate))
}

func TestPeriodDefaultsToCurrentMonth(t *testing.T) {
	s := newTestStore(t)
	s.Periods.now = func() time.Time { return time.Date(2023, 7, 19, 8, 0, 0, 0, time.UTC) }

	p, err := s.Periods.Create(context.Background(), core.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "202307", p.Code)
	assert.Equal(t, "2023-07-31", p.PeriodEnd.String())
}

func TestPeriodUpdateRederives(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.Periods.Create(ctx, core.Fields{core.FieldPeriodStart: "2024-01-01"})
	require.NoError(t, err)

	p, err = s.Periods.Update(ctx, p.ID, core.Fields{core.FieldPeriodStart: "2023-11-01"})
	require.NoError(t, err)
	assert.Equal(t, "202311", p.Code)
	assert.Equal(t, "2023-11-30", p.PeriodEnd.String())
}

func TestTransactionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account, sub, period := seedLedger(t, s)

	tx, err := s.Transactions.Create(ctx, core.Fields{
		core.FieldAmount:          "59.99",
		core.FieldAccountID:       account.ID,
		core.FieldAccountForID:    account.ID,
		core.FieldCategoryID:      sub.CategoryID,
		core.FieldSubcategoryID:   sub.ID,
		core.FieldPeriodID:        period.ID,
		core.FieldTransactionDate: "2024-01-12",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, tx.Code, "code is generated when omitted")
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("59.99")))
	require.NotNil(t, tx.TransactionDate)
	assert.Equal(t, "2024-01-12", tx.TransactionDate.String())
	assert.Nil(t, tx.BusinessID)
	assert.Nil(t, tx.ReversesID)

	got, err := s.Transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tx.Code, got.Code)
	assert.True(t, got.Amount.Equal(tx.Amount))
}

func TestQueryFiltersAndPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	home, err := s.Categories.Create(ctx, core.Fields{core.FieldName: "Home"})
	require.NoError(t, err)
	health, err := s.Categories.Create(ctx, core.Fields{core.FieldName: "Health"})
	require.NoError(t, err)
	for _, name := range []string{"Rent", "Utilities", "Repairs"} {
		_, err := s.Subcategories.Create(ctx, core.Fields{core.FieldName: name, core.FieldCategoryID: home.ID})
		require.NoError(t, err)
	}
	_, err = s.Subcategories.Create(ctx, core.Fields{core.FieldName: "Doctor", core.FieldCategoryID: health.ID})
	require.NoError(t, err)

	all, err := s.Subcategories.Query(ctx, core.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	homeSubs, err := s.Subcategories.Query(ctx, core.Query{Filters: core.Fields{core.FieldCategoryID: "1"}})
	require.NoError(t, err)
	require.Len(t, homeSubs, 3)
	assert.Equal(t, "Rent", homeSubs[0].Name)

	page, err := s.Subcategories.Query(ctx, core.Query{Limit: 2, Offset: 1, Filters: core.Fields{core.FieldCategoryID: home.ID}})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Utilities", page[0].Name)
	assert.Equal(t, "Repairs", page[1].Name)

	one, err := s.Subcategories.FindOne(ctx, core.Fields{core.FieldName: "Doctor"})
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, health.ID, one.CategoryID)

	none, err := s.Subcategories.FindOne(ctx, core.Fields{core.FieldName: "Nope"})
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.Subcategories.Query(ctx, core.Query{Filters: core.Fields{"colour": "red"}})
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestQueryNullFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account, sub, period := seedLedger(t, s)

	base := core.Fields{
		core.FieldAmount:        "10",
		core.FieldAccountID:     account.ID,
		core.FieldAccountForID:  account.ID,
		core.FieldCategoryID:    sub.CategoryID,
		core.FieldSubcategoryID: sub.ID,
		core.FieldPeriodID:      period.ID,
	}
	_, err := s.Transactions.Create(ctx, base)
	require.NoError(t, err)

	found, err := s.Transactions.Query(ctx, core.Query{Filters: core.Fields{core.FieldBusinessID: nil}})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestConstraintField(t *testing.T) {
	assert.Equal(t, "code", constraintField("UNIQUE constraint failed: period.code"))
	assert.Equal(t, "category_id", constraintField("UNIQUE constraint failed: subcategory.category_id, subcategory.name"))
	assert.Equal(t, "", constraintField("something else"))
}
