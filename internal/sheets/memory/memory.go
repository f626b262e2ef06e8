package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ports "financetracker/internal/sheets"
)

var _ ports.TransactionWriter = (*Store)(nil)

// Store keeps appended rows per sheet. It backs dry-run exports and tests.
type Store struct {
	mu     sync.Mutex
	sheets map[string][]ports.Row
}

func New() *Store {
	return &Store{sheets: map[string][]ports.Row{}}
}

// AppendRows stores the rows and returns a synthetic range reference.
func (s *Store) AppendRows(_ context.Context, sheet string, rows []ports.Row) (string, error) {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return "", fmt.Errorf("sheet name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.sheets[sheet]) + 1
	s.sheets[sheet] = append(s.sheets[sheet], rows...)
	return fmt.Sprintf("mem:%s!%d:%d", sheet, first, len(s.sheets[sheet])), nil
}

// Rows returns a copy of the rows written to sheet.
func (s *Store) Rows(sheet string) []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Row(nil), s.sheets[sheet]...)
}
