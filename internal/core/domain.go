package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

const (
	Income  TransactionType = "entrada"
	Expense TransactionType = "saida"
)

type (
	// TransactionType is either Income or Expense. The underlying strings are
	// the labels used on the wire and in storage.
	TransactionType string

	Date struct {
		time.Time
	}

	// Transaction is a persisted income or expense record.
	Transaction struct {
		ID       int64           `json:"id"`
		Type     TransactionType `json:"type"`
		Category string          `json:"category"`
		Amount   float64         `json:"amount"`
		Date     Date            `json:"date"`
	}

	// TransactionCreate carries the fields needed to create a Transaction.
	// The id is always assigned by storage.
	TransactionCreate struct {
		Type     TransactionType `json:"type"`
		Category string          `json:"category"`
		Amount   float64         `json:"amount"`
		Date     Date            `json:"date"`
	}
)

var (
	ErrNotFound    = errors.New("transaction not found")
	ErrInvalidType = errors.New("invalid transaction type")
	ErrInvalidDate = errors.New("invalid date")
)

// ParseTransactionType accepts the wire labels and their English aliases.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Income), "income":
		return Income, nil
	case string(Expense), "expense":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

func (t *TransactionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidType, string(b))
	}
	parsed, err := ParseTransactionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// InMonth reports whether d falls in the calendar month of t.
func (d Date) InMonth(t time.Time) bool {
	return d.Year() == t.Year() && d.Month() == t.Month()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks what storage cannot hold. Category and the amount's sign
// are left to the entry form.
func (tc TransactionCreate) Validate() error {
	if !tc.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, string(tc.Type))
	}
	if math.IsNaN(tc.Amount) || math.IsInf(tc.Amount, 0) {
		return fmt.Errorf("%w: amount must be finite", ErrInvalidAmount)
	}
	return tc.Date.Validate()
}

// Persisted builds the stored shape once storage has assigned an id.
func (tc TransactionCreate) Persisted(id int64) Transaction {
	return Transaction{
		ID:       id,
		Type:     tc.Type,
		Category: tc.Category,
		Amount:   tc.Amount,
		Date:     tc.Date,
	}
}
