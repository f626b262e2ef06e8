// Package qr parses receipt-style QR code payloads of the form
//
//	<business_code>*<transaction_code>*<date>*<time>*<amount>
//
// where date is YYYY-MM-DD, time is HH:MM:SS and amount is a decimal.
// Scanning the code from a camera is left to the caller.
package qr

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financetracker/internal/core"
)

const (
	Separator  = "*"
	Format     = "<business_code>*<transaction_code>*<date>*<time>*<amount>"
	TimeLayout = "15:04:05"

	fieldCount = 5
)

// Payload holds the typed fields of a decoded QR code.
type Payload struct {
	BusinessCode    string
	TransactionCode string
	Date            core.Date
	// Time is the time of day on the zero date.
	Time   time.Time
	Amount decimal.Decimal
	// Timestamp combines Date and Time; it is derived, never supplied.
	Timestamp time.Time
}

// Parse splits raw into its five fields and coerces each one.
func Parse(raw string) (Payload, error) {
	items := strings.Split(strings.TrimSpace(raw), Separator)
	if len(items) != fieldCount {
		return Payload{}, &core.FormatError{Input: raw, Reason: "unknown QR format, expected " + Format}
	}

	businessCode := strings.TrimSpace(items[0])
	transactionCode := strings.TrimSpace(items[1])
	if businessCode == "" || transactionCode == "" {
		return Payload{}, &core.FormatError{Input: raw, Reason: "business and transaction codes cannot be empty"}
	}

	d, err := core.ParseDate(strings.TrimSpace(items[2]))
	if err != nil {
		return Payload{}, &core.FormatError{Input: raw, Reason: "date must be YYYY-MM-DD"}
	}
	tm, err := time.Parse(TimeLayout, strings.TrimSpace(items[3]))
	if err != nil {
		return Payload{}, &core.FormatError{Input: raw, Reason: "time must be HH:MM:SS"}
	}
	amount, err := parseAmount(items[4])
	if err != nil {
		return Payload{}, &core.FormatError{Input: raw, Reason: "amount must be a decimal number"}
	}

	return New(businessCode, transactionCode, d, tm, amount), nil
}

// parseAmount reads a dot decimal. Unlike core.ParseAmount it does not
// accept a comma separator.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		return decimal.Zero, core.ErrInvalidAmount
	}
	return core.ParseAmount(s)
}

// New builds a Payload and derives its Timestamp.
func New(businessCode, transactionCode string, d core.Date, tm time.Time, amount decimal.Decimal) Payload {
	clock := time.Date(0, time.January, 1, tm.Hour(), tm.Minute(), tm.Second(), 0, time.UTC)
	return Payload{
		BusinessCode:    businessCode,
		TransactionCode: transactionCode,
		Date:            d,
		Time:            clock,
		Amount:          amount,
		Timestamp: time.Date(d.Year(), d.Month(), d.Day(),
			clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC),
	}
}

// String renders the payload in its canonical QR text form.
func (p Payload) String() string {
	return strings.Join([]string{
		p.BusinessCode,
		p.TransactionCode,
		p.Date.String(),
		p.Time.Format(TimeLayout),
		p.Amount.String(),
	}, Separator)
}

// LedgerCode is the unique transaction code recorded for this payload.
func (p Payload) LedgerCode() string {
	return p.BusinessCode + "-" + p.TransactionCode
}

// Equal compares payloads field by field, amounts numerically.
func (p Payload) Equal(o Payload) bool {
	return p.BusinessCode == o.BusinessCode &&
		p.TransactionCode == o.TransactionCode &&
		p.Date.Equal(o.Date.Time) &&
		p.Time.Equal(o.Time) &&
		p.Amount.Equal(o.Amount) &&
		p.Timestamp.Equal(o.Timestamp)
}
