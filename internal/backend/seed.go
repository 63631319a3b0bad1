package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"expensetracker/internal/core"
)

// DefaultCategories are seeded, each at zero, when no seed file exists.
var DefaultCategories = []string{"Entertainment", "Food", "Transport", "Utilities"}

// Seed is the initial content of an empty store.
//
//	{"currentBalance": 0, "expenses": [{"category": "Food", "amount": 0, "description": ""}]}
type Seed struct {
	CurrentBalance core.Amount    `json:"currentBalance"`
	Expenses       []core.Expense `json:"expenses"`
}

// DefaultSeed returns one zeroed expense per default category and a zero balance.
func DefaultSeed() Seed {
	s := Seed{}
	for _, c := range DefaultCategories {
		s.Expenses = append(s.Expenses, core.Expense{Category: c})
	}
	return s
}

// LoadSeed reads a seed file. A missing file yields DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSeed(), nil
	}
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	var s Seed
	if err := json.Unmarshal(b, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return s, nil
}

// Apply writes the seed into store unless it already holds expenses. It
// reports whether anything was written.
func (s Seed) Apply(ctx context.Context, store Store) (bool, error) {
	n, err := store.CountExpenses(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	for _, e := range s.Expenses {
		if _, err := store.CreateExpense(ctx, e); err != nil {
			return false, fmt.Errorf("seed expense %q: %w", e.Category, err)
		}
	}
	if _, err := store.SetBalance(ctx, s.CurrentBalance); err != nil {
		return false, fmt.Errorf("seed balance: %w", err)
	}
	return true, nil
}
