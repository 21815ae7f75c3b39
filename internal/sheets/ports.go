package sheets

import (
	"context"

	"finance/internal/core"
)

// Header is the first row written by every TransactionWriter.
var Header = []any{"id", "type", "category", "amount", "date"}

// Ports for outbound adapters.
type (
	// TransactionWriter replaces the whole target sheet with the given
	// transactions and returns a reference to the written range.
	TransactionWriter interface {
		ReplaceAll(ctx context.Context, txs []core.Transaction) (ref string, err error)
	}
)

// Rows renders the header followed by one row per transaction in the order
// given.
func Rows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, Header)
	for _, t := range txs {
		rows = append(rows, []any{t.ID, t.Type.String(), t.Category, t.Amount, t.Date.String()})
	}
	return rows
}
