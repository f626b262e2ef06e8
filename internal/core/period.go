package core

import "time"

// DateLayout is the ISO-8601 calendar date layout used for stored dates.
const DateLayout = "2006-01-02"

// PeriodCodeLayout formats a period start as its YYYYMM code.
const PeriodCodeLayout = "200601"

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last calendar day of t's month.
func MonthEnd(t time.Time) time.Time {
	// Day 0 of the next month normalises to the last day of this one,
	// including December into January of the following year.
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// PreviousMonthStart is one day before start, renormalised to its month.
func PreviousMonthStart(start time.Time) time.Time {
	return MonthStart(MonthStart(start).AddDate(0, 0, -1))
}

// PreviousYearStart is the same month one calendar year earlier.
func PreviousYearStart(start time.Time) time.Time {
	s := MonthStart(start)
	return time.Date(s.Year()-1, s.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IsMonthStart reports whether t falls on the first day of a month.
func IsMonthStart(t time.Time) bool {
	return t.Day() == 1
}

// PeriodCode derives the unique YYYYMM code of a month.
func PeriodCode(t time.Time) string {
	return MonthStart(t).Format(PeriodCodeLayout)
}

// PeriodBounds holds the derived attributes of a calendar-month period.
type PeriodBounds struct {
	Code  string
	Start time.Time
	End   time.Time
}

// BoundsFor derives the period containing t.
func BoundsFor(t time.Time) PeriodBounds {
	start := MonthStart(t)
	return PeriodBounds{
		Code:  PeriodCode(start),
		Start: start,
		End:   MonthEnd(start),
	}
}

// BoundsFromStart derives a period from an explicit start, which must
// already be normalised to day 1.
func BoundsFromStart(start time.Time) (PeriodBounds, error) {
	if start.IsZero() {
		return PeriodBounds{}, NewValidationError(KindPeriod, FieldPeriodStart, "date cannot be zero")
	}
	if !IsMonthStart(start) {
		return PeriodBounds{}, NewValidationError(KindPeriod, FieldPeriodStart,
			"must be the first day of a month, got "+start.Format(DateLayout))
	}
	return BoundsFor(start), nil
}

// ParsePeriodCode parses a YYYYMM code back to the month start.
func ParsePeriodCode(code string) (time.Time, error) {
	t, err := time.Parse(PeriodCodeLayout, code)
	if err != nil {
		return time.Time{}, &FormatError{Input: code, Reason: "expected YYYYMM period code"}
	}
	return MonthStart(t), nil
}
