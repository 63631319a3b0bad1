// Package ledger projects an expense collection into the rows and total shown
// in the expense table.
package ledger

import (
	"math"
	"net/url"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

// DefaultCurrency prefixes the total when none is configured.
const DefaultCurrency = "KES"

type (
	// Row is one rendered expense. ResetPath is bound to the row's own id.
	Row struct {
		ID          core.ExpenseID
		Category    string
		Amount      string
		Description string
		ResetPath   string
	}

	// View is the rendered table plus its total.
	View struct {
		Rows  []Row
		Total string
	}
)

// Render builds the view for expenses. It is a pure function of its input.
func Render(expenses []core.Expense, currency string) View {
	if currency == "" {
		currency = DefaultCurrency
	}

	rows := make([]Row, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, Row{
			ID:          e.ID,
			Category:    e.Category,
			Amount:      core.FormatAmount(e.Amount),
			Description: e.Description,
			ResetPath:   ResetPath(e.ID),
		})
	}

	return View{
		Rows:  rows,
		Total: currency + " " + core.FormatAmount(Total(expenses)),
	}
}

// Total sums the expense amounts. Finite amounts are summed exactly; any
// non-finite amount makes the total follow IEEE arithmetic instead.
func Total(expenses []core.Expense) core.Amount {
	sum := decimal.Zero
	special := 0.0
	for _, e := range expenses {
		if !e.Amount.IsFinite() {
			special += float64(e.Amount)
			continue
		}
		sum = sum.Add(e.Amount.Decimal())
	}
	if math.IsNaN(special) || math.IsInf(special, 0) {
		return core.Amount(special)
	}
	return core.Amount(sum.InexactFloat64())
}

// ResetPath is the endpoint a row's reset button posts to.
func ResetPath(id core.ExpenseID) string {
	return "/expenses/" + url.PathEscape(id.String()) + "/reset"
}
