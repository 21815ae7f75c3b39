// Package dashboard renders the single-page finance dashboard. Every figure it
// shows is derived from the transaction list fetched from the API.
package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"finance/internal/core"
)

// MonthlyLimit is the fixed spending threshold for one calendar month.
const MonthlyLimit = 6000.00

// Summary holds the all-time totals.
type Summary struct {
	TotalIncome  float64
	TotalExpense float64
	Balance      float64
	Negative     bool
}

// Summarize totals income and expense and derives the balance.
func Summarize(txs []core.Transaction) Summary {
	var incomes, expenses []float64
	for _, t := range txs {
		switch t.Type {
		case core.Income:
			incomes = append(incomes, t.Amount)
		case core.Expense:
			expenses = append(expenses, t.Amount)
		}
	}
	income := core.SumAmounts(incomes...)
	expense := core.SumAmounts(expenses...)
	balance := core.SumAmounts(income, -expense)
	return Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      balance,
		Negative:     balance < 0,
	}
}

// Alert compares one month's expenses with MonthlyLimit.
type Alert struct {
	Month     time.Time
	Spent     float64
	Limit     float64
	Over      bool
	Remaining float64 // zero when Over
	Overage   float64 // zero unless Over
}

// CheckMonthlyLimit sums the expenses dated in now's month and year. Income
// and other months never count.
func CheckMonthlyLimit(txs []core.Transaction, now time.Time) Alert {
	spent := decimal.Zero
	for _, t := range txs {
		if t.Type == core.Expense && t.Date.InMonth(now) {
			spent = spent.Add(decimal.NewFromFloat(t.Amount))
		}
	}

	limit := decimal.NewFromFloat(MonthlyLimit)
	alert := Alert{
		Month: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
		Spent: spent.InexactFloat64(),
		Limit: MonthlyLimit,
		Over:  spent.GreaterThan(limit),
	}
	if alert.Over {
		alert.Overage = spent.Sub(limit).InexactFloat64()
	} else {
		alert.Remaining = limit.Sub(spent).InexactFloat64()
	}
	return alert
}
