package backend

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"expensetracker/internal/core"
)

// Ensure interface conformance
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the balance and the expenses in process memory. Ids are
// assigned from a counter, starting at 1.
type MemoryStore struct {
	mu       sync.Mutex
	balance  core.Amount
	expenses []core.Expense
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// GetBalance implements remote.BalanceStore
func (s *MemoryStore) GetBalance(_ context.Context) (core.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// SetBalance implements remote.BalanceStore
func (s *MemoryStore) SetBalance(_ context.Context, v core.Amount) (core.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = v
	return v, nil
}

// ListExpenses implements remote.ExpenseStore
func (s *MemoryStore) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.expenses)
	if out == nil {
		out = []core.Expense{}
	}
	return out, nil
}

// ListExpensesByCategory implements remote.ExpenseStore
func (s *MemoryStore) ListExpensesByCategory(_ context.Context, category string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Expense{}
	for _, e := range s.expenses {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out, nil
}

// PatchExpense implements remote.ExpenseStore
func (s *MemoryStore) PatchExpense(_ context.Context, id core.ExpenseID, patch core.ExpensePatch) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrExpenseNotFound)
	}
	s.expenses[i] = patch.Apply(s.expenses[i])
	return s.expenses[i], nil
}

func (s *MemoryStore) GetExpense(_ context.Context, id core.ExpenseID) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrExpenseNotFound)
	}
	return s.expenses[i], nil
}

// CreateExpense stores e under the next free id. A caller-supplied id is
// ignored.
func (s *MemoryStore) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = core.ExpenseID(strconv.FormatInt(s.nextID, 10))
	s.nextID++
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *MemoryStore) CountExpenses(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expenses), nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryStore) index(id core.ExpenseID) int {
	return slices.IndexFunc(s.expenses, func(e core.Expense) bool { return e.ID == id })
}
