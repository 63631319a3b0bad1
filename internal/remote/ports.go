package remote

import (
	"context"

	"expensetracker/internal/core"
)

// Ports for the remote resource store.
type (
	BalanceStore interface {
		// GetBalance returns the stored currentBalance.
		GetBalance(ctx context.Context) (core.Amount, error)
		// SetBalance replaces the balance and returns the value the store echoed.
		SetBalance(ctx context.Context, v core.Amount) (core.Amount, error)
	}

	ExpenseStore interface {
		// ListExpenses returns every expense in store order.
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		// ListExpensesByCategory returns the expenses whose category matches exactly.
		ListExpensesByCategory(ctx context.Context, category string) ([]core.Expense, error)
		// PatchExpense merges the patch into the record and returns the echoed record.
		PatchExpense(ctx context.Context, id core.ExpenseID, patch core.ExpensePatch) (core.Expense, error)
	}

	Store interface {
		BalanceStore
		ExpenseStore
	}
)
