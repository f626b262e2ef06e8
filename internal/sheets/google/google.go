package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"financetracker/internal/cache"
	"financetracker/internal/core"
	applog "financetracker/internal/log"
	ports "financetracker/internal/sheets"
)

const (
	// lastColumn is the column of the final Row field.
	lastColumn   = "I"
	rowCacheTTL  = 5 * time.Minute
	rowCacheSize = 16
)

var _ ports.TransactionWriter = (*Client)(nil)

// Options configures the Sheets client. CredentialsJSON wins over
// CredentialsFile. ClientOptions are passed through to the API client
// after the credentials.
type Options struct {
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
	ClientOptions   []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *applog.Logger

	// next free row per sheet, so consecutive exports skip the A:A read
	nextRow cache.Cache[string, int]
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, logger *applog.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.WithComponent(applog.ComponentSheets),
		nextRow:       cache.NewLRUCache[string, int](rowCacheSize, rowCacheTTL),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	case len(opts.ClientOptions) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	var clientOpts []goption.ClientOption
	if credentialsJSON != nil {
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendRows writes rows below the last used row of sheet. An empty sheet
// gets the header row first.
func (c *Client) AppendRows(ctx context.Context, sheet string, rows []ports.Row) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return "", nil
	}

	next, err := c.findNextRow(ctx, sheet)
	if err != nil {
		return "", err
	}

	values := make([][]any, 0, len(rows)+1)
	if next == 1 {
		values = append(values, headerValues())
	}
	for _, r := range rows {
		values = append(values, rowValues(r))
	}
	last := next + len(values) - 1

	rng := sheetRange(sheet, fmt.Sprintf("A%d:%s%d", next, lastColumn, last))
	vr := &gsheet.ValueRange{Values: values}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.nextRow.Delete(sheet)
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}

	c.nextRow.Set(sheet, last+1)
	c.logger.InfoContext(ctx, "Rows written", "sheet", sheet, "range", rng, applog.FieldCount, len(rows))
	return rng, nil
}

func (c *Client) findNextRow(ctx context.Context, sheet string) (int, error) {
	if next, ok := c.nextRow.Get(sheet); ok {
		return next, nil
	}
	rng := sheetRange(sheet, "A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}
	return len(resp.Values) + 1, nil
}

// sheetRange builds an A1 range, quoting the sheet name.
func sheetRange(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}

func headerValues() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

func rowValues(r ports.Row) []any {
	return []any{
		r.Date,
		r.Code,
		core.FormatAmount(r.Amount),
		r.Account,
		r.AccountFor,
		r.Category,
		r.Subcategory,
		r.Business,
		r.Period,
	}
}
