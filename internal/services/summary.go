package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/storage"
)

// SummaryService aggregates one account's spending per period.
type SummaryService struct {
	store  *storage.Store
	logger *applog.Logger
}

func NewSummaryService(store *storage.Store, logger *applog.Logger) *SummaryService {
	return &SummaryService{
		store:  store,
		logger: logger.WithComponent(applog.ComponentSummary),
	}
}

// Summarize compares the account's total in the target period with the
// previous month and the same month one year earlier. A periodID of 0
// targets the latest period in which the account has transactions.
func (s *SummaryService) Summarize(ctx context.Context, accountID, periodID int64) (core.SummaryMetrics, error) {
	var m core.SummaryMetrics
	err := s.store.Read(ctx, func(r *storage.Reader) error {
		period, err := targetPeriod(ctx, r, accountID, periodID)
		if err != nil {
			return err
		}

		start := period.PeriodStart.Time
		prevMonth := core.PreviousMonthStart(start)
		prevYear := core.PreviousYearStart(start)

		totals, err := r.MonthlyTotals(ctx, accountID, prevYear, start)
		if err != nil {
			return err
		}

		m = core.SummaryMetrics{
			AccountID:          accountID,
			Period:             period,
			CurrentMonthTotal:  totalFor(totals, start),
			PreviousMonthTotal: totalFor(totals, prevMonth),
			PreviousYearTotal:  totalFor(totals, prevYear),
		}
		m.MonthOverMonthDifference, m.MonthOverMonthPercent = core.Change(m.CurrentMonthTotal, m.PreviousMonthTotal)
		m.YearOverYearDifference, m.YearOverYearPercent = core.Change(m.CurrentMonthTotal, m.PreviousYearTotal)
		return nil
	})
	if err != nil {
		return core.SummaryMetrics{}, err
	}

	s.logger.DebugContext(ctx, "Summary computed",
		applog.FieldOperation, applog.OpSummary,
		applog.FieldAccountID, accountID,
		applog.FieldPeriodCode, m.Period.Code)
	return m, nil
}

// TopBusinesses ranks the businesses the account paid in the target period
// by total, largest first. Transactions without a business are ignored.
func (s *SummaryService) TopBusinesses(ctx context.Context, accountID, periodID int64, n int) ([]core.GroupTotal, error) {
	return s.top(ctx, accountID, periodID, n, core.KindBusiness, func(t core.Transaction) (int64, bool) {
		if t.BusinessID == nil {
			return 0, false
		}
		return *t.BusinessID, true
	})
}

// TopCategories ranks the account's categories in the target period by total.
func (s *SummaryService) TopCategories(ctx context.Context, accountID, periodID int64, n int) ([]core.GroupTotal, error) {
	return s.top(ctx, accountID, periodID, n, core.KindCategory, func(t core.Transaction) (int64, bool) {
		return t.CategoryID, true
	})
}

// History returns the account's monthly totals for the trailing months
// calendar months ending at the target period. Empty months are zero.
func (s *SummaryService) History(ctx context.Context, accountID, periodID int64, months int) ([]core.HistoryPoint, error) {
	if months < 1 {
		return nil, core.NewValidationError("", "months", "must be at least 1")
	}

	var points []core.HistoryPoint
	err := s.store.Read(ctx, func(r *storage.Reader) error {
		period, err := targetPeriod(ctx, r, accountID, periodID)
		if err != nil {
			return err
		}

		end := period.PeriodStart.Time
		first := end.AddDate(0, -(months - 1), 0)
		totals, err := r.MonthlyTotals(ctx, accountID, first, end)
		if err != nil {
			return err
		}

		points = make([]core.HistoryPoint, 0, months)
		for month := first; !month.After(end); month = month.AddDate(0, 1, 0) {
			points = append(points, core.HistoryPoint{
				PeriodStart: core.Date{Time: month},
				Amount:      totalFor(totals, month),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

type groupKey func(core.Transaction) (int64, bool)

func (s *SummaryService) top(ctx context.Context, accountID, periodID int64, n int, kind core.Kind, key groupKey) ([]core.GroupTotal, error) {
	if n < 0 {
		return nil, core.NewValidationError("", "n", "cannot be negative")
	}

	var groups []core.GroupTotal
	err := s.store.Read(ctx, func(r *storage.Reader) error {
		period, err := targetPeriod(ctx, r, accountID, periodID)
		if err != nil {
			return err
		}
		txs, err := r.Transactions(ctx, accountID, period.ID)
		if err != nil {
			return err
		}

		index := make(map[int64]int)
		for _, t := range txs {
			id, ok := key(t)
			if !ok {
				continue
			}
			i, seen := index[id]
			if !seen {
				i = len(groups)
				index[id] = i
				groups = append(groups, core.GroupTotal{ID: id, Total: decimal.Zero})
			}
			groups[i].Count++
			groups[i].Total = groups[i].Total.Add(t.Amount)
		}

		ids := make([]int64, len(groups))
		for i, g := range groups {
			ids[i] = g.ID
		}
		names, err := r.Names(ctx, kind, ids)
		if err != nil {
			return err
		}
		for i := range groups {
			groups[i].Name = names[groups[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stable, so equal totals keep first-appearance order
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Total.GreaterThan(groups[j].Total)
	})
	if n > 0 && len(groups) > n {
		groups = groups[:n]
	}
	return groups, nil
}

func targetPeriod(ctx context.Context, r *storage.Reader, accountID, periodID int64) (core.Period, error) {
	ok, err := r.Exists(ctx, core.KindAccount, accountID)
	if err != nil {
		return core.Period{}, err
	}
	if !ok {
		return core.Period{}, core.NotFoundID(core.KindAccount, accountID)
	}

	if periodID != 0 {
		p, err := r.Period(ctx, periodID)
		if err != nil {
			return core.Period{}, err
		}
		if p == nil {
			return core.Period{}, core.NotFoundID(core.KindPeriod, periodID)
		}
		return *p, nil
	}

	p, err := r.LatestPeriodFor(ctx, accountID)
	if err != nil {
		return core.Period{}, err
	}
	if p == nil {
		return core.Period{}, &core.NotFoundError{
			Kind: core.KindPeriod,
			Key:  fmt.Sprintf("with transactions for account id=%d", accountID),
		}
	}
	return *p, nil
}

func totalFor(totals map[string]decimal.Decimal, start time.Time) decimal.Decimal {
	if d, ok := totals[start.Format(core.DateLayout)]; ok {
		return d
	}
	return decimal.Zero
}
