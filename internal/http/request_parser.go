package http

import (
	"net/url"
	"strconv"
	"strings"

	"financetracker/internal/core"
)

// Grouping values accepted by /summary/top.
const (
	GroupByBusiness = "business"
	GroupByCategory = "category"
)

// ReportParams holds the query parameters shared by the report endpoints.
type ReportParams struct {
	AccountID int64
	// PeriodID 0 selects the latest period with transactions.
	PeriodID int64
}

// ParseReportParams extracts account_id, which is required, and the
// optional period_id.
func ParseReportParams(query url.Values) (ReportParams, error) {
	var p ReportParams
	raw := strings.TrimSpace(query.Get("account_id"))
	if raw == "" {
		return p, core.NewValidationError("", "account_id", "is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return p, core.NewValidationError("", "account_id", "must be a positive integer")
	}
	p.AccountID = id

	periodID, err := parseIntParam(query, "period_id", 0)
	if err != nil {
		return p, err
	}
	if periodID < 0 {
		return p, core.NewValidationError("", "period_id", "must be a positive integer")
	}
	p.PeriodID = int64(periodID)
	return p, nil
}

// ParseGroupBy reads the by parameter, defaulting to business.
func ParseGroupBy(query url.Values) (string, error) {
	switch by := strings.ToLower(strings.TrimSpace(query.Get("by"))); by {
	case "", GroupByBusiness:
		return GroupByBusiness, nil
	case GroupByCategory:
		return GroupByCategory, nil
	default:
		return "", core.NewValidationError("", "by", "must be business or category")
	}
}

// parseIntParam returns the integer value of name, or def when absent.
func parseIntParam(query url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.NewValidationError("", name, "must be an integer")
	}
	return v, nil
}
