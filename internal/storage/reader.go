package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"financetracker/internal/core"
)

// Reader answers aggregation queries inside a single read transaction.
type Reader struct {
	tx *sql.Tx
}

// Read runs fn against a consistent snapshot. The transaction is always
// rolled back.
func (s *Store) Read(ctx context.Context, fn func(*Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback()
	return fn(&Reader{tx: tx})
}

// Exists reports whether a row of kind with id exists.
func (r *Reader) Exists(ctx context.Context, kind core.Kind, id int64) (bool, error) {
	var one int
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", quoteIdent(string(kind)))
	err := r.tx.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s id=%d: %w", kind, id, err)
	}
	return true, nil
}

// Period returns the period with id, or nil.
func (r *Reader) Period(ctx context.Context, id int64) (*core.Period, error) {
	return r.period(ctx, " WHERE id = ?", id)
}

// LatestPeriodFor returns the most recent period holding any transaction
// paid by accountID, or nil.
func (r *Reader) LatestPeriodFor(ctx context.Context, accountID int64) (*core.Period, error) {
	return r.period(ctx, ` WHERE id = (
		SELECT t.period_id FROM "transaction" t
		JOIN "period" p ON p.id = t.period_id
		WHERE t.account_id = ?
		ORDER BY p.period_start DESC LIMIT 1)`, accountID)
}

func (r *Reader) period(ctx context.Context, where string, args ...any) (*core.Period, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", joinIdents(core.PeriodSchema.ColumnNames()), quoteIdent(core.PeriodSchema.Table()))
	p, err := scanPeriod(r.tx.QueryRowContext(ctx, query+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read period: %w", err)
	}
	return &p, nil
}

// MonthlyTotals sums the amounts paid by accountID per period start, for
// periods starting within [from, to]. Months without transactions are absent.
func (r *Reader) MonthlyTotals(ctx context.Context, accountID int64, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT p.period_start, t.amount
		FROM "transaction" t
		JOIN "period" p ON p.id = t.period_id
		WHERE t.account_id = ? AND p.period_start BETWEEN ? AND ?`,
		accountID, from.Format(core.DateLayout), to.Format(core.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query monthly totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var start, amount string
		if err := rows.Scan(&start, &amount); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		totals[start] = totals[start].Add(d)
	}
	return totals, rows.Err()
}

// Transactions returns every transaction paid by accountID in periodID,
// in insertion order.
func (r *Reader) Transactions(ctx context.Context, accountID, periodID int64) ([]core.Transaction, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE account_id = ? AND period_id = ? ORDER BY id",
		joinIdents(core.TransactionSchema.ColumnNames()), quoteIdent(core.TransactionSchema.Table()))
	rows, err := r.tx.QueryContext(ctx, query, accountID, periodID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Transaction returns the transaction with id, or nil.
func (r *Reader) Transaction(ctx context.Context, id int64) (*core.Transaction, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?",
		joinIdents(core.TransactionSchema.ColumnNames()), quoteIdent(core.TransactionSchema.Table()))
	t, err := scanTransaction(r.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read transaction %d: %w", id, err)
	}
	return &t, nil
}

// Names maps ids of a named kind to their names.
func (r *Reader) Names(ctx context.Context, kind core.Kind, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id, name FROM %s WHERE id IN (%s)",
		quoteIdent(string(kind)), placeholders(len(ids)))

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s names: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan %s name: %w", kind, err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
