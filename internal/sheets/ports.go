package sheets

import (
	"context"

	"github.com/shopspring/decimal"
)

// Row is one ledger transaction flattened for a spreadsheet, with
// references resolved to names.
type Row struct {
	Date        string          `json:"date"`
	Code        string          `json:"code"`
	Amount      decimal.Decimal `json:"amount"`
	Account     string          `json:"account"`
	AccountFor  string          `json:"account_for"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Business    string          `json:"business"`
	Period      string          `json:"period"`
}

// Header names the columns Row is written as, in order.
var Header = []string{"Date", "Code", "Amount", "Account", "For", "Category", "Subcategory", "Business", "Period"}

// Ports for outbound adapters.
type (
	// TransactionWriter appends rows to the named sheet and returns a
	// reference to the written range.
	TransactionWriter interface {
		AppendRows(ctx context.Context, sheet string, rows []Row) (rangeRef string, err error)
	}
)
