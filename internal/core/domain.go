package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind names one of the six ledger entity kinds.
type Kind string

const (
	KindAccount     Kind = "account"
	KindCategory    Kind = "category"
	KindSubcategory Kind = "subcategory"
	KindBusiness    Kind = "business"
	KindPeriod      Kind = "period"
	KindTransaction Kind = "transaction"
)

// Kinds lists every entity kind in dependency order.
func Kinds() []Kind {
	return []Kind{KindAccount, KindCategory, KindSubcategory, KindBusiness, KindPeriod, KindTransaction}
}

// ParseKind accepts a full kind name or its one-letter alias.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if s == string(k) || s == string(k[0]) {
			return k, true
		}
	}
	return "", false
}

// Field names shared by schemas, services and the command surface.
const (
	FieldID                   = "id"
	FieldCreatedTime          = "created_time"
	FieldUpdatedTime          = "updated_time"
	FieldName                 = "name"
	FieldCode                 = "code"
	FieldCategoryID           = "category_id"
	FieldSubcategoryID        = "subcategory_id"
	FieldDefaultCategoryID    = "default_category_id"
	FieldDefaultSubcategoryID = "default_subcategory_id"
	FieldPeriodStart          = "period_start"
	FieldPeriodEnd            = "period_end"
	FieldAmount               = "amount"
	FieldTransactionDate      = "transaction_date"
	FieldAccountID            = "account_id"
	FieldAccountForID         = "account_for_id"
	FieldBusinessID           = "business_id"
	FieldPeriodID             = "period_id"
	FieldReversesID           = "reverses_id"
)

type (
	// Date is a calendar date without a time of day.
	Date struct {
		time.Time
	}

	// Meta holds the identity and store-assigned timestamps of every entity.
	Meta struct {
		ID          int64     `json:"id"`
		CreatedTime time.Time `json:"created_time"`
		UpdatedTime time.Time `json:"updated_time"`
	}

	Account struct {
		Meta
		Name string `json:"name"`
	}

	Category struct {
		Meta
		Name string `json:"name"`
	}

	Subcategory struct {
		Meta
		Name       string `json:"name"`
		CategoryID int64  `json:"category_id"`
	}

	// Business is a counterparty profile whose defaults classify its transactions.
	Business struct {
		Meta
		Name                 string `json:"name"`
		Code                 string `json:"code"`
		DefaultCategoryID    int64  `json:"default_category_id"`
		DefaultSubcategoryID int64  `json:"default_subcategory_id"`
	}

	// Period is a calendar-month reporting bucket.
	Period struct {
		Meta
		Code        string `json:"code"`
		PeriodStart Date   `json:"period_start"`
		PeriodEnd   Date   `json:"period_end"`
	}

	Transaction struct {
		Meta
		Code            string          `json:"code"`
		Amount          decimal.Decimal `json:"amount"`
		TransactionDate *Date           `json:"transaction_date,omitempty"`
		AccountID       int64           `json:"account_id"`
		AccountForID    int64           `json:"account_for_id"`
		CategoryID      int64           `json:"category_id"`
		SubcategoryID   int64           `json:"subcategory_id"`
		BusinessID      *int64          `json:"business_id,omitempty"`
		PeriodID        int64           `json:"period_id"`
		ReversesID      *int64          `json:"reverses_id,omitempty"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// IsReversal reports whether t cancels another transaction.
func (t Transaction) IsReversal() bool {
	return t.ReversesID != nil
}
