// Package tracker implements the page's flows: loading the balance and the
// ledger, topping up, recording spend against a category and resetting.
//
// Every flow is read-compute-write against the remote store with no
// transaction around it. Failures are logged and returned; nothing is retried
// or rolled back, so a flow that fails half way leaves the store as it is.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/remote"
)

// Messages shown by the host dialogs.
const (
	MsgInsufficientBalance = "Your balance is less than the amount you want to spend"
	MsgConfirmResetSingle  = "Are you sure you want to reset this category? This will set the amount to zero and cannot be undone."
	MsgConfirmResetAll     = "Are you sure you want to reset everything? This will reset all expenses and your current balance to zero and cannot be undone."
)

// ErrNotConfirmed is returned when the user declines a confirmation prompt.
var ErrNotConfirmed = errors.New("not confirmed")

// Prompter is the host's blocking dialog surface.
type Prompter interface {
	Confirm(ctx context.Context, message string) bool
	Alert(ctx context.Context, message string)
	ResetExpenseForm(ctx context.Context)
}

// EventPublisher receives an event for each mutation the store acknowledged.
type EventPublisher interface {
	PublishActivity(ctx context.Context, ev core.ActivityEvent) error
}

// Options tunes a Tracker.
type Options struct {
	Logger    *log.Logger
	Publisher EventPublisher

	// SerializeMutations runs at most one mutation flow at a time. Off, flows
	// race and the last response to land wins the display.
	SerializeMutations bool

	// ResetConcurrency caps in-flight PATCHes during ResetAll. Zero is unlimited.
	ResetConcurrency int
}

type Tracker struct {
	store      remote.Store
	state      *State
	events     EventPublisher
	logger     *log.Logger
	mutations  *semaphore.Weighted
	resetLimit int
}

func New(store remote.Store, state *State, opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentTracker)

	t := &Tracker{
		store:      store,
		state:      state,
		events:     opts.Publisher,
		logger:     logger,
		resetLimit: opts.ResetConcurrency,
	}
	if opts.SerializeMutations {
		t.mutations = semaphore.NewWeighted(1)
	}
	return t
}

// State returns the state the tracker mutates.
func (t *Tracker) State() *State {
	return t.state
}

// Load is the page load: the balance and the expense list are fetched
// concurrently and each result is applied as soon as it arrives.
func (t *Tracker) Load(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return t.RefreshBalance(ctx) })
	g.Go(func() error { return t.RefreshExpenses(ctx) })
	return g.Wait()
}

// RefreshBalance reads the balance and displays it. On failure the display is
// left as it was.
func (t *Tracker) RefreshBalance(ctx context.Context) error {
	v, err := t.store.GetBalance(ctx)
	if err != nil {
		t.logFailure(ctx, "Balance read failed", err, log.OpLoad, nil)
		return err
	}
	t.state.SetDisplayedBalance(core.FormatAmount(v))
	return nil
}

// RefreshExpenses fetches every expense, re-renders the ledger and rebuilds
// the category directory.
func (t *Tracker) RefreshExpenses(ctx context.Context) error {
	expenses, err := t.store.ListExpenses(ctx)
	if err != nil {
		t.logFailure(ctx, "Expense list failed", err, log.OpLoad, nil)
		return err
	}
	t.state.ApplyExpenses(expenses)
	t.loggerFor(ctx).DebugContext(ctx, "Ledger rendered", "rows", len(expenses))
	return nil
}

// SelectCategory records the category chosen in the expense form.
func (t *Tracker) SelectCategory(category string) {
	t.state.Select(category)
}

// TopUp adds amountText to the displayed balance and writes the sum back. The
// display then shows the value the store echoed. Malformed input is not
// rejected: it turns into NaN and is sent as such.
func (t *Tracker) TopUp(ctx context.Context, amountText string) (core.Amount, error) {
	release, err := t.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	amount := core.ParseNumber(amountText)
	next := core.ParseNumber(t.state.DisplayedBalance()) + amount

	echo, err := t.store.SetBalance(ctx, next)
	if err != nil {
		t.logFailure(ctx, "Top-up failed", err, log.OpTopUp,
			log.NewFields().WithAmount(core.FormatAmount(amount)))
		return 0, err
	}
	t.state.SetDisplayedBalance(core.FormatAmount(echo))

	ev := core.NewActivityEvent(core.ActivityTopUp)
	ev.Amount, ev.Balance = amount, echo
	t.applied(ctx, log.OpTopUp, ev)
	return echo, nil
}

// AddExpense records amountText against the selected category: the category's
// record is looked up, its running total is patched, then the balance is
// reduced by the same amount. The ledger is not re-rendered.
//
// When the displayed balance is below the amount the form is reset, the user
// is alerted and no mutation is sent.
func (t *Tracker) AddExpense(ctx context.Context, p Prompter, amountText string) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	category, ok := t.state.SelectedCategory()
	if !ok {
		t.logFailure(ctx, "No category to record against", core.ErrNoCategories, log.OpAddExpense, nil)
		return core.ErrNoCategories
	}

	matches, err := t.store.ListExpensesByCategory(ctx, category)
	if err != nil {
		t.logFailure(ctx, "Category lookup failed", err, log.OpAddExpense,
			log.NewFields().WithExpense("", category))
		return err
	}
	if len(matches) == 0 {
		err := fmt.Errorf("%w: %q", core.ErrCategoryNotFound, category)
		t.logFailure(ctx, "Category lookup returned nothing", err, log.OpAddExpense,
			log.NewFields().WithExpense("", category))
		return err
	}
	target := matches[0]

	amount := core.ParseNumber(amountText)
	newAmount := target.Amount + amount

	if core.ParseNumber(t.state.DisplayedBalance()) < amount {
		p.ResetExpenseForm(ctx)
		p.Alert(ctx, MsgInsufficientBalance)
		t.loggerFor(ctx).WarnContext(ctx, "Expense rejected",
			log.FieldCategory, category,
			log.FieldAmount, core.FormatAmount(amount),
			log.FieldBalance, t.state.DisplayedBalance(),
			log.FieldErrorType, log.ErrorTypeDomain)
		return core.ErrInsufficientBalance
	}

	if _, err := t.store.PatchExpense(ctx, target.ID, core.AmountPatch(newAmount)); err != nil {
		t.logFailure(ctx, "Expense update failed", err, log.OpAddExpense,
			log.NewFields().WithExpense(target.ID.String(), category).WithAmount(core.FormatAmount(newAmount)))
		return err
	}

	ev := core.NewActivityEvent(core.ActivityExpenseRecorded)
	ev.ExpenseID, ev.Category, ev.Amount = target.ID, category, amount
	t.applied(ctx, log.OpAddExpense, ev)

	if _, err := t.spendBalance(ctx, amount, category); err != nil {
		return fmt.Errorf("expense %s recorded but balance not updated: %w", target.ID, err)
	}
	return nil
}

// spendBalance subtracts amount from the balance displayed when it runs.
func (t *Tracker) spendBalance(ctx context.Context, amount core.Amount, category string) (core.Amount, error) {
	next := core.ParseNumber(t.state.DisplayedBalance()) - amount
	echo, err := t.store.SetBalance(ctx, next)
	if err != nil {
		t.logFailure(ctx, "Balance update after expense failed", err, log.OpSpendBalance,
			log.NewFields().WithExpense("", category).WithAmount(core.FormatAmount(amount)))
		return 0, err
	}
	t.state.SetDisplayedBalance(core.FormatAmount(echo))

	ev := core.NewActivityEvent(core.ActivityBalanceSpent)
	ev.Category, ev.Amount, ev.Balance = category, amount, echo
	t.applied(ctx, log.OpSpendBalance, ev)
	return echo, nil
}

// ResetSingle zeroes one expense after confirmation. The balance and the
// rendered ledger are left alone.
func (t *Tracker) ResetSingle(ctx context.Context, p Prompter, id core.ExpenseID) error {
	if !p.Confirm(ctx, MsgConfirmResetSingle) {
		return ErrNotConfirmed
	}
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	updated, err := t.store.PatchExpense(ctx, id, core.AmountPatch(0))
	if err != nil {
		t.logFailure(ctx, "Category reset failed", err, log.OpResetSingle,
			log.NewFields().WithExpense(id.String(), ""))
		return err
	}

	ev := core.NewActivityEvent(core.ActivityCategoryReset)
	ev.ExpenseID, ev.Category = id, updated.Category
	t.applied(ctx, log.OpResetSingle, ev)
	return nil
}

func (t *Tracker) acquire(ctx context.Context) (func(), error) {
	if t.mutations == nil {
		return func() {}, nil
	}
	if err := t.mutations.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for in-flight mutation: %w", err)
	}
	return func() { t.mutations.Release(1) }, nil
}

func (t *Tracker) applied(ctx context.Context, op string, ev core.ActivityEvent) {
	fields := log.NewFields().
		WithExpense(ev.ExpenseID.String(), ev.Category).
		WithAmount(core.FormatAmount(ev.Amount))
	fields[log.FieldEventID] = ev.ID
	log.NewStructuredLogger(t.loggerFor(ctx)).LogMutationApplied(ctx, op, fields)

	if t.events == nil {
		return
	}
	if err := t.events.PublishActivity(ctx, ev); err != nil {
		t.loggerFor(ctx).WarnContext(ctx, "Activity event not published",
			log.FieldEventID, ev.ID,
			log.FieldEventKind, string(ev.Kind),
			log.FieldError, err)
	}
}

func (t *Tracker) logFailure(ctx context.Context, msg string, err error, op string, fields log.LogFields) {
	if fields == nil {
		fields = log.NewFields()
	}
	log.NewStructuredLogger(t.loggerFor(ctx)).LogError(ctx, msg, err, log.ComponentTracker, op, fields.WithErrorType(ErrorType(err)))
}

// loggerFor prefers the request-scoped logger so flow logs carry the request id.
func (t *Tracker) loggerFor(ctx context.Context) *log.Logger {
	return log.FromContextOr(ctx, t.logger).WithComponent(log.ComponentTracker)
}

// ErrorType classifies err for logs: transport, malformed response, domain
// rule, or anything else.
func ErrorType(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, core.ErrNoCategories):
		return log.ErrorTypeDomain
	case errors.Is(err, core.ErrMalformedResponse):
		return log.ErrorTypeMalformed
	case remote.IsNotFound(err):
		return log.ErrorTypeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	case errors.As(err, &netErr):
		return log.ErrorTypeNetwork
	default:
		return log.ErrorTypeInternal
	}
}

// IsUserFacing reports whether err is a domain rule the user should be told about.
func IsUserFacing(err error) bool {
	return ErrorType(err) == log.ErrorTypeDomain
}
