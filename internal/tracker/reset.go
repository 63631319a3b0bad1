package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// BatchResult counts the outcome of a fan-out of expense resets.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    map[core.ExpenseID]error
}

// Err joins the per-expense failures, or returns nil when all succeeded.
func (b BatchResult) Err() error {
	if len(b.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(b.Failed))
	for _, err := range b.Failed {
		errs = append(errs, err)
	}
	return fmt.Errorf("%d of %d expense resets failed: %w", len(b.Failed), b.Total, errors.Join(errs...))
}

// ResetReport is the outcome of ResetAll. The expense branch and the balance
// branch run independently, so either may fail without the other.
type ResetReport struct {
	Expenses    BatchResult
	ExpensesErr error
	BalanceErr  error
}

// Err joins both branch errors.
func (r ResetReport) Err() error {
	return errors.Join(r.ExpensesErr, r.BalanceErr)
}

// ResetAll zeroes every expense and the balance after confirmation.
//
// Two branches start together. One lists the expenses and PATCHes each full
// record with amount 0, all in parallel; the other writes a zero balance and
// displays the echo. Neither waits for the other and the ledger is not
// re-rendered.
func (t *Tracker) ResetAll(ctx context.Context, p Prompter) (ResetReport, error) {
	if !p.Confirm(ctx, MsgConfirmResetAll) {
		return ResetReport{}, ErrNotConfirmed
	}
	release, err := t.acquire(ctx)
	if err != nil {
		return ResetReport{}, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	var report ResetReport
	var g errgroup.Group
	g.Go(func() error {
		report.Expenses, report.ExpensesErr = t.resetExpenses(ctx)
		return nil
	})
	g.Go(func() error {
		report.BalanceErr = t.resetBalance(ctx)
		return nil
	})
	_ = g.Wait()

	t.loggerFor(ctx).InfoContext(ctx, "Reset finished",
		log.FieldOperation, log.OpResetAll,
		"expenses_total", report.Expenses.Total,
		"expenses_reset", report.Expenses.Succeeded,
		"expenses_failed", len(report.Expenses.Failed),
		"balance_reset", report.BalanceErr == nil)

	return report, report.Err()
}

func (t *Tracker) resetExpenses(ctx context.Context) (BatchResult, error) {
	expenses, err := t.store.ListExpenses(ctx)
	if err != nil {
		t.logFailure(ctx, "Expense list for reset failed", err, log.OpResetAll, nil)
		return BatchResult{}, err
	}

	result := BatchResult{Total: len(expenses)}
	var mu sync.Mutex

	// A failing PATCH must not cancel its siblings, so the group has no context.
	var g errgroup.Group
	if t.resetLimit > 0 {
		g.SetLimit(t.resetLimit)
	}
	for _, e := range expenses {
		g.Go(func() error {
			zeroed := e
			zeroed.Amount = 0
			_, err := t.store.PatchExpense(ctx, e.ID, core.FullPatch(zeroed))
			if err != nil {
				mu.Lock()
				if result.Failed == nil {
					result.Failed = make(map[core.ExpenseID]error)
				}
				result.Failed[e.ID] = err
				mu.Unlock()
				t.logFailure(ctx, "Expense reset failed", err, log.OpResetAll,
					log.NewFields().WithExpense(e.ID.String(), e.Category))
				return nil
			}
			mu.Lock()
			result.Succeeded++
			mu.Unlock()

			// Publish outside mu: a publish may block on a broker redial.
			ev := core.NewActivityEvent(core.ActivityExpenseReset)
			ev.ExpenseID, ev.Category = e.ID, e.Category
			t.applied(ctx, log.OpResetAll, ev)
			return nil
		})
	}
	_ = g.Wait()

	return result, result.Err()
}

func (t *Tracker) resetBalance(ctx context.Context) error {
	echo, err := t.store.SetBalance(ctx, 0)
	if err != nil {
		t.logFailure(ctx, "Balance reset failed", err, log.OpResetAll, nil)
		return err
	}
	t.state.SetDisplayedBalance(core.FormatAmount(echo))

	ev := core.NewActivityEvent(core.ActivityBalanceReset)
	ev.Balance = echo
	t.applied(ctx, log.OpResetAll, ev)
	return nil
}
