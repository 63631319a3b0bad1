package tracker

import (
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/directory"
	"expensetracker/internal/ledger"
)

// InitialBalanceText is shown until the first balance read succeeds.
const InitialBalanceText = "0.00"

// State is what the page shows: the balance text, the category directory and
// the last rendered ledger. Flows read the balance back from here, so a stale
// display feeds stale arithmetic.
type State struct {
	mu       sync.Mutex
	balance  string
	dir      *directory.Directory
	view     ledger.View
	currency string
}

// Snapshot is a copy of State for rendering.
type Snapshot struct {
	Balance    string
	Categories []string
	Selected   string
	Ledger     ledger.View
}

func NewState(currency string) *State {
	if currency == "" {
		currency = ledger.DefaultCurrency
	}
	return &State{
		balance:  InitialBalanceText,
		dir:      directory.New(),
		view:     ledger.Render(nil, currency),
		currency: currency,
	}
}

// DisplayedBalance returns the balance text as displayed.
func (s *State) DisplayedBalance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// SetDisplayedBalance overwrites the balance text.
func (s *State) SetDisplayedBalance(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = text
}

// ApplyExpenses re-renders the ledger and refreshes the directory from a
// freshly fetched collection.
func (s *State) ApplyExpenses(expenses []core.Expense) {
	view := ledger.Render(expenses, s.currency)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
	s.dir.Refresh(expenses)
}

// Select records the category chosen in the expense form.
func (s *State) Select(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir.Select(category)
}

// SelectedCategory returns the selection, if any.
func (s *State) SelectedCategory() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir.Selected()
}

// Currency returns the ledger total prefix.
func (s *State) Currency() string {
	return s.currency
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	selected, _ := s.dir.Selected()
	rows := make([]ledger.Row, len(s.view.Rows))
	copy(rows, s.view.Rows)
	return Snapshot{
		Balance:    s.balance,
		Categories: s.dir.Categories(),
		Selected:   selected,
		Ledger:     ledger.View{Rows: rows, Total: s.view.Total},
	}
}
