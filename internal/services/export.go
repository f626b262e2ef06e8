package services

import (
	"context"
	"fmt"

	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/sheets"
	"financetracker/internal/storage"
)

// ExportResult describes one spreadsheet export.
type ExportResult struct {
	AccountID int64  `json:"account_id"`
	Period    string `json:"period"`
	Sheet     string `json:"sheet"`
	Range     string `json:"range,omitempty"`
	Rows      int    `json:"rows"`
}

// ExportService copies an account's transactions for one period into a
// spreadsheet, one sheet per year.
type ExportService struct {
	store     *storage.Store
	writer    sheets.TransactionWriter
	sheetBase string
	logger    *applog.Logger
}

func NewExportService(store *storage.Store, writer sheets.TransactionWriter, sheetBase string, logger *applog.Logger) *ExportService {
	return &ExportService{
		store:     store,
		writer:    writer,
		sheetBase: sheetBase,
		logger:    logger.WithComponent(applog.ComponentSheets),
	}
}

// Export writes the period's transactions paid by accountID. A periodID of
// 0 exports the latest period with transactions.
func (s *ExportService) Export(ctx context.Context, accountID, periodID int64) (ExportResult, error) {
	var (
		period core.Period
		rows   []sheets.Row
	)
	err := s.store.Read(ctx, func(r *storage.Reader) error {
		var err error
		period, err = targetPeriod(ctx, r, accountID, periodID)
		if err != nil {
			return err
		}
		txs, err := r.Transactions(ctx, accountID, period.ID)
		if err != nil {
			return err
		}
		rows, err = buildRows(ctx, r, period, txs)
		return err
	})
	if err != nil {
		return ExportResult{}, err
	}

	res := ExportResult{
		AccountID: accountID,
		Period:    period.Code,
		Sheet:     sheets.YearSheetName(s.sheetBase, period.PeriodStart.Year()),
		Rows:      len(rows),
	}
	if len(rows) == 0 {
		s.logger.InfoContext(ctx, "Nothing to export", applog.FieldAccountID, accountID, applog.FieldPeriodCode, period.Code)
		return res, nil
	}

	res.Range, err = s.writer.AppendRows(ctx, res.Sheet, rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "Export failed",
			applog.NewFields().WithOperation(applog.OpExport).WithError(err).ToSlice()...)
		return ExportResult{}, fmt.Errorf("export %s: %w", period.Code, err)
	}
	s.logger.InfoContext(ctx, "Transactions exported",
		applog.FieldAccountID, accountID, applog.FieldPeriodCode, period.Code,
		"sheet", res.Sheet, applog.FieldCount, res.Rows)
	return res, nil
}

// ExportTransaction appends the transaction with id to the sheet of its
// period's year.
func (s *ExportService) ExportTransaction(ctx context.Context, id int64) (ExportResult, error) {
	var (
		period core.Period
		rows   []sheets.Row
		tx     *core.Transaction
	)
	err := s.store.Read(ctx, func(r *storage.Reader) error {
		var err error
		tx, err = r.Transaction(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return core.NotFoundID(core.KindTransaction, id)
		}
		p, err := r.Period(ctx, tx.PeriodID)
		if err != nil {
			return err
		}
		if p == nil {
			return core.NotFoundID(core.KindPeriod, tx.PeriodID)
		}
		period = *p
		rows, err = buildRows(ctx, r, period, []core.Transaction{*tx})
		return err
	})
	if err != nil {
		return ExportResult{}, err
	}

	res := ExportResult{
		AccountID: tx.AccountID,
		Period:    period.Code,
		Sheet:     sheets.YearSheetName(s.sheetBase, period.PeriodStart.Year()),
		Rows:      len(rows),
	}
	res.Range, err = s.writer.AppendRows(ctx, res.Sheet, rows)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export transaction %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Transaction exported",
		applog.FieldEntityID, id, applog.FieldTransactionCode, tx.Code, "sheet", res.Sheet, "range", res.Range)
	return res, nil
}

// buildRows resolves every reference in txs to its name.
func buildRows(ctx context.Context, r *storage.Reader, period core.Period, txs []core.Transaction) ([]sheets.Row, error) {
	ids := map[core.Kind][]int64{}
	for _, t := range txs {
		ids[core.KindAccount] = append(ids[core.KindAccount], t.AccountID, t.AccountForID)
		ids[core.KindCategory] = append(ids[core.KindCategory], t.CategoryID)
		ids[core.KindSubcategory] = append(ids[core.KindSubcategory], t.SubcategoryID)
		if t.BusinessID != nil {
			ids[core.KindBusiness] = append(ids[core.KindBusiness], *t.BusinessID)
		}
	}

	names := map[core.Kind]map[int64]string{}
	for _, kind := range []core.Kind{core.KindAccount, core.KindCategory, core.KindSubcategory, core.KindBusiness} {
		n, err := r.Names(ctx, kind, dedupe(ids[kind]))
		if err != nil {
			return nil, err
		}
		names[kind] = n
	}

	rows := make([]sheets.Row, 0, len(txs))
	for _, t := range txs {
		row := sheets.Row{
			Code:        t.Code,
			Amount:      t.Amount,
			Account:     names[core.KindAccount][t.AccountID],
			AccountFor:  names[core.KindAccount][t.AccountForID],
			Category:    names[core.KindCategory][t.CategoryID],
			Subcategory: names[core.KindSubcategory][t.SubcategoryID],
			Period:      period.Code,
		}
		if t.TransactionDate != nil {
			row.Date = t.TransactionDate.String()
		}
		if t.BusinessID != nil {
			row.Business = names[core.KindBusiness][*t.BusinessID]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
