package dashboard

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"finance/internal/core"
)

func TestParseForm(t *testing.T) {
	tests := []struct {
		name      string
		values    url.Values
		want      Form
		wantErr   error
		wantValid error
	}{
		{
			name:   "valid expense",
			values: url.Values{"type": {"saida"}, "category": {" rent "}, "amount": {"1500.00"}, "date": {"2024-01-15"}},
			want:   Form{Type: core.Expense, Category: "rent", Amount: 1500, Date: core.NewDate(2024, 1, 15)},
		},
		{
			name:   "comma decimal separator",
			values: url.Values{"type": {"entrada"}, "category": {"salary"}, "amount": {"12,34"}, "date": {"2024-01-10"}},
			want:   Form{Type: core.Income, Category: "salary", Amount: 12.34, Date: core.NewDate(2024, 1, 10)},
		},
		{
			name:      "whitespace category",
			values:    url.Values{"type": {"entrada"}, "category": {"   "}, "amount": {"10"}, "date": {"2024-01-10"}},
			want:      Form{Type: core.Income, Amount: 10, Date: core.NewDate(2024, 1, 10)},
			wantValid: ErrEmptyCategory,
		},
		{
			name:      "zero amount",
			values:    url.Values{"type": {"saida"}, "category": {"food"}, "amount": {"0"}, "date": {"2024-01-10"}},
			want:      Form{Type: core.Expense, Category: "food", Date: core.NewDate(2024, 1, 10)},
			wantValid: ErrNonPositiveAmount,
		},
		{
			name:      "negative amount",
			values:    url.Values{"type": {"saida"}, "category": {"food"}, "amount": {"-5"}, "date": {"2024-01-10"}},
			want:      Form{Type: core.Expense, Category: "food", Amount: -5, Date: core.NewDate(2024, 1, 10)},
			wantValid: ErrNonPositiveAmount,
		},
		{
			name:    "unparsable amount",
			values:  url.Values{"type": {"saida"}, "category": {"food"}, "amount": {"ten"}, "date": {"2024-01-10"}},
			wantErr: ErrNonPositiveAmount,
		},
		{
			name:    "unknown type",
			values:  url.Values{"type": {"transfer"}, "category": {"x"}, "amount": {"1"}},
			wantErr: core.ErrInvalidType,
		},
		{
			name:    "bad date",
			values:  url.Values{"type": {"entrada"}, "category": {"x"}, "amount": {"1"}, "date": {"15/01/2024"}},
			wantErr: core.ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForm(tt.values, time.Now())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseForm error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Type != tt.want.Type || got.Category != tt.want.Category || got.Amount != tt.want.Amount || got.Date.String() != tt.want.Date.String() {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if err := got.Validate(); !errors.Is(err, tt.wantValid) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantValid)
			}
		})
	}
}

func TestParseForm_DateDefaultsToToday(t *testing.T) {
	now := time.Date(2024, time.February, 29, 23, 30, 0, 0, time.UTC)
	got, err := ParseForm(url.Values{"type": {"entrada"}, "category": {"x"}, "amount": {"1"}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if got.Date.String() != "2024-02-29" {
		t.Errorf("date = %s, want 2024-02-29", got.Date)
	}
}

func TestForm_ValidateChecksCategoryFirst(t *testing.T) {
	if err := (Form{Amount: 0}).Validate(); !errors.Is(err, ErrEmptyCategory) {
		t.Errorf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestForm_TransactionCreate(t *testing.T) {
	f := Form{Type: core.Income, Category: "salary", Amount: 5000, Date: core.NewDate(2024, 1, 10)}
	tc := f.TransactionCreate()
	if tc.Type != core.Income || tc.Category != "salary" || tc.Amount != 5000 || tc.Date.String() != "2024-01-10" {
		t.Errorf("unexpected payload %+v", tc)
	}
}
