package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ActivityKind names an applied mutation.
type ActivityKind string

const (
	ActivityTopUp           ActivityKind = "top_up"
	ActivityExpenseRecorded ActivityKind = "expense_recorded"
	ActivityBalanceSpent    ActivityKind = "balance_spent"
	ActivityCategoryReset   ActivityKind = "category_reset"
	ActivityExpenseReset    ActivityKind = "expense_reset"
	ActivityBalanceReset    ActivityKind = "balance_reset"
)

// ActivityEvent records one mutation the remote store acknowledged.
type ActivityEvent struct {
	ID         string       `json:"id"`
	Kind       ActivityKind `json:"kind"`
	ExpenseID  ExpenseID    `json:"expenseId,omitempty"`
	Category   string       `json:"category,omitempty"`
	Amount     Amount       `json:"amount"`
	Balance    Amount       `json:"balance"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// NewActivityEvent stamps an event with a fresh ULID and the current time.
func NewActivityEvent(kind ActivityKind) ActivityEvent {
	now := time.Now().UTC()
	return ActivityEvent{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Kind:       kind,
		OccurredAt: now,
	}
}

// IsValid reports whether k is a known kind.
func (k ActivityKind) IsValid() bool {
	switch k {
	case ActivityTopUp, ActivityExpenseRecorded, ActivityBalanceSpent,
		ActivityCategoryReset, ActivityExpenseReset, ActivityBalanceReset:
		return true
	default:
		return false
	}
}
