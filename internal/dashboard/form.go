package dashboard

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"finance/internal/core"
)

var (
	ErrEmptyCategory     = errors.New("please fill in the category")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
)

// Form is a submitted creation form.
type Form struct {
	Type     core.TransactionType
	Category string
	Amount   float64
	Date     core.Date
}

// ParseForm reads the type, category, amount and date fields. An empty date
// means the calendar day of now. Category and amount are checked by Validate.
func ParseForm(values url.Values, now time.Time) (Form, error) {
	typ, err := core.ParseTransactionType(values.Get("type"))
	if err != nil {
		return Form{}, err
	}

	f := Form{
		Type:     typ,
		Category: strings.TrimSpace(values.Get("category")),
	}

	if raw := strings.TrimSpace(values.Get("amount")); raw != "" {
		amount, err := core.ParseAmount(raw)
		if err != nil {
			return Form{}, ErrNonPositiveAmount
		}
		f.Amount = amount.InexactFloat64()
	}

	if raw := strings.TrimSpace(values.Get("date")); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return Form{}, err
		}
		f.Date = d
	} else {
		f.Date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}

	return f, nil
}

// Validate rejects an empty category and a non-positive amount, in that order.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Category) == "" {
		return ErrEmptyCategory
	}
	if f.Amount <= 0 {
		return ErrNonPositiveAmount
	}
	return nil
}

// TransactionCreate converts a validated form into an API payload.
func (f Form) TransactionCreate() core.TransactionCreate {
	return core.TransactionCreate{
		Type:     f.Type,
		Category: f.Category,
		Amount:   f.Amount,
		Date:     f.Date,
	}
}
