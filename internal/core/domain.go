package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type (
	// ExpenseID identifies an expense record on the remote store. The store may
	// hand out numeric or string identifiers; both decode into the same value.
	ExpenseID string

	// Balance is the singleton balance resource.
	Balance struct {
		CurrentBalance Amount `json:"currentBalance"`
	}

	// Expense is a per-category running total. Amount is cumulative, not a
	// single transaction.
	Expense struct {
		ID          ExpenseID `json:"id"`
		Category    string    `json:"category"`
		Amount      Amount    `json:"amount"`
		Description string    `json:"description"`
	}

	// ExpensePatch carries the fields of a PATCH request. Nil fields are omitted.
	ExpensePatch struct {
		Category    *string `json:"category,omitempty"`
		Amount      *Amount `json:"amount,omitempty"`
		Description *string `json:"description,omitempty"`
	}
)

var (
	ErrInsufficientBalance = errors.New("balance is less than the amount to spend")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrNoCategories        = errors.New("no category available")
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrMalformedResponse   = errors.New("malformed response")
)

// String implements fmt.Stringer
func (id ExpenseID) String() string {
	return string(id)
}

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (id *ExpenseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExpenseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expense id: %w", err)
	}
	*id = ExpenseID(n.String())
	return nil
}

// AmountPatch returns a patch that only sets the amount.
func AmountPatch(a Amount) ExpensePatch {
	return ExpensePatch{Amount: &a}
}

// FullPatch returns a patch carrying every field of e.
func FullPatch(e Expense) ExpensePatch {
	category := e.Category
	amount := e.Amount
	description := e.Description
	return ExpensePatch{
		Category:    &category,
		Amount:      &amount,
		Description: &description,
	}
}

// Apply merges the patch into e and returns the result.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	return e
}

// IsEmpty reports whether the patch carries no fields.
func (p ExpensePatch) IsEmpty() bool {
	return p.Category == nil && p.Amount == nil && p.Description == nil
}

// NumericID returns the id as an integer when it is one.
func (id ExpenseID) NumericID() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}
