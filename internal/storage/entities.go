package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"financetracker/internal/core"
)

type meta struct {
	created, updated string
}

func (m meta) apply(dst *core.Meta) error {
	var err error
	if dst.CreatedTime, err = time.Parse(TimestampLayout, m.created); err != nil {
		return fmt.Errorf("parse created_time: %w", err)
	}
	if dst.UpdatedTime, err = time.Parse(TimestampLayout, m.updated); err != nil {
		return fmt.Errorf("parse updated_time: %w", err)
	}
	return nil
}

func scanAccount(r rowScanner) (core.Account, error) {
	var (
		a  core.Account
		ts meta
	)
	if err := r.Scan(&a.ID, &ts.created, &ts.updated, &a.Name); err != nil {
		return a, err
	}
	return a, ts.apply(&a.Meta)
}

func scanCategory(r rowScanner) (core.Category, error) {
	var (
		c  core.Category
		ts meta
	)
	if err := r.Scan(&c.ID, &ts.created, &ts.updated, &c.Name); err != nil {
		return c, err
	}
	return c, ts.apply(&c.Meta)
}

func scanSubcategory(r rowScanner) (core.Subcategory, error) {
	var (
		s  core.Subcategory
		ts meta
	)
	if err := r.Scan(&s.ID, &ts.created, &ts.updated, &s.Name, &s.CategoryID); err != nil {
		return s, err
	}
	return s, ts.apply(&s.Meta)
}

func scanBusiness(r rowScanner) (core.Business, error) {
	var (
		b  core.Business
		ts meta
	)
	if err := r.Scan(&b.ID, &ts.created, &ts.updated, &b.Name, &b.Code,
		&b.DefaultCategoryID, &b.DefaultSubcategoryID); err != nil {
		return b, err
	}
	return b, ts.apply(&b.Meta)
}

func scanPeriod(r rowScanner) (core.Period, error) {
	var (
		p          core.Period
		ts         meta
		start, end string
	)
	if err := r.Scan(&p.ID, &ts.created, &ts.updated, &p.Code, &start, &end); err != nil {
		return p, err
	}
	var err error
	if p.PeriodStart, err = core.ParseDate(start); err != nil {
		return p, fmt.Errorf("parse period_start: %w", err)
	}
	if p.PeriodEnd, err = core.ParseDate(end); err != nil {
		return p, fmt.Errorf("parse period_end: %w", err)
	}
	return p, ts.apply(&p.Meta)
}

func scanTransaction(r rowScanner) (core.Transaction, error) {
	var (
		t                  core.Transaction
		ts                 meta
		amount             string
		date               sql.NullString
		business, reverses sql.NullInt64
	)
	if err := r.Scan(&t.ID, &ts.created, &ts.updated, &t.Code, &amount, &date,
		&t.AccountID, &t.AccountForID, &t.CategoryID, &t.SubcategoryID,
		&business, &t.PeriodID, &reverses); err != nil {
		return t, err
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("parse amount: %w", err)
	}
	if date.Valid {
		d, err := core.ParseDate(date.String)
		if err != nil {
			return t, fmt.Errorf("parse transaction_date: %w", err)
		}
		t.TransactionDate = &d
	}
	if business.Valid {
		t.BusinessID = &business.Int64
	}
	if reverses.Valid {
		t.ReversesID = &reverses.Int64
	}
	return t, ts.apply(&t.Meta)
}

// derivePeriod fills code and period_end from period_start. A new period
// without a start covers the current month.
func derivePeriod(values map[string]any, creating bool, now time.Time) error {
	raw, ok := values[core.FieldPeriodStart]
	if !ok || raw == nil {
		if !creating {
			return nil
		}
		raw = core.MonthStart(now).Format(core.DateLayout)
	}
	s, ok := raw.(string)
	if !ok {
		return core.NewValidationError(core.KindPeriod, core.FieldPeriodStart, "must be a date")
	}
	start, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return core.NewValidationError(core.KindPeriod, core.FieldPeriodStart, "must be YYYY-MM-DD")
	}
	b, err := core.BoundsFromStart(start)
	if err != nil {
		return err
	}
	values[core.FieldPeriodStart] = b.Start.Format(core.DateLayout)
	values[core.FieldPeriodEnd] = b.End.Format(core.DateLayout)
	values[core.FieldCode] = b.Code
	return nil
}
