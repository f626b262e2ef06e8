package memory

import (
	"context"
	"testing"

	ports "financetracker/internal/sheets"
)

func TestAppendRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendRows(ctx, "2024 Transactions", []ports.Row{{Code: "a"}, {Code: "b"}})
	if err != nil {
		t.Fatalf("AppendRows() error = %v", err)
	}
	if ref != "mem:2024 Transactions!1:2" {
		t.Errorf("AppendRows() ref = %q", ref)
	}

	ref, err = s.AppendRows(ctx, "2024 Transactions", []ports.Row{{Code: "c"}})
	if err != nil {
		t.Fatalf("AppendRows() error = %v", err)
	}
	if ref != "mem:2024 Transactions!3:3" {
		t.Errorf("AppendRows() ref = %q", ref)
	}

	rows := s.Rows("2024 Transactions")
	if len(rows) != 3 || rows[2].Code != "c" {
		t.Errorf("Rows() = %+v", rows)
	}
	if len(s.Rows("other")) != 0 {
		t.Error("Rows() of an unknown sheet should be empty")
	}
}

func TestAppendRowsRequiresSheet(t *testing.T) {
	if _, err := New().AppendRows(context.Background(), " ", nil); err == nil {
		t.Fatal("expected error for empty sheet name")
	}
}
