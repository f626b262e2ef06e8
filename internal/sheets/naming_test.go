package sheets

import "testing"

func TestYearSheetName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Transactions", 2024, "2024 Transactions"},
		{"  Transactions ", 2023, "2023 Transactions"},
		{"2022 Transactions", 2024, "2022 Transactions"},
		{"1800 Ledger", 2024, "2024 1800 Ledger"},
		{"", 2024, ""},
	}
	for _, tt := range tests {
		if got := YearSheetName(tt.base, tt.year); got != tt.want {
			t.Errorf("YearSheetName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}
