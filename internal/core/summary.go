package core

import "github.com/shopspring/decimal"

// SummaryMetrics compares one account's spending in a period against the
// previous month and the same month a year earlier.
type SummaryMetrics struct {
	AccountID int64  `json:"account_id"`
	Period    Period `json:"period"`

	CurrentMonthTotal  decimal.Decimal `json:"current_month_total"`
	PreviousMonthTotal decimal.Decimal `json:"previous_month_total"`
	PreviousYearTotal  decimal.Decimal `json:"previous_year_total"`

	// Percent fields are null when the comparison base is zero.
	MonthOverMonthDifference decimal.Decimal     `json:"month_over_month_difference"`
	MonthOverMonthPercent    decimal.NullDecimal `json:"month_over_month_percent"`
	YearOverYearDifference   decimal.Decimal     `json:"year_over_year_difference"`
	YearOverYearPercent      decimal.NullDecimal `json:"year_over_year_percent"`
}

// GroupTotal aggregates the transactions of one business or category.
type GroupTotal struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// HistoryPoint is one month of a chart data series.
type HistoryPoint struct {
	PeriodStart Date            `json:"period_start"`
	Amount      decimal.Decimal `json:"amount"`
}

// Change returns current-base and, when base is non-zero, the relative
// change as a fraction of base.
func Change(current, base decimal.Decimal) (decimal.Decimal, decimal.NullDecimal) {
	diff := current.Sub(base)
	if base.IsZero() {
		return diff, decimal.NullDecimal{}
	}
	return diff, decimal.NullDecimal{Decimal: diff.DivRound(base, 4), Valid: true}
}
