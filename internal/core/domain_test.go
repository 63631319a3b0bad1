package core

import (
	"encoding/json"
	"testing"
)

func TestExpenseIDUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want ExpenseID
	}{
		{`"a1"`, "a1"},
		{`7`, "7"},
		{`null`, ""},
	}
	for _, tc := range cases {
		var id ExpenseID
		if err := json.Unmarshal([]byte(tc.in), &id); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if id != tc.want {
			t.Fatalf("%s: got %q want %q", tc.in, id, tc.want)
		}
	}

	var id ExpenseID
	if err := json.Unmarshal([]byte(`{}`), &id); err == nil {
		t.Fatalf("expected error for object id")
	}
}

func TestExpensePatch(t *testing.T) {
	e := Expense{ID: "1", Category: "Food", Amount: 10, Description: "groceries"}

	b, _ := json.Marshal(AmountPatch(0))
	if string(b) != `{"amount":0}` {
		t.Fatalf("amount patch should carry only amount, got %s", b)
	}

	got := AmountPatch(25).Apply(e)
	if got.Amount != 25 || got.Category != "Food" || got.Description != "groceries" {
		t.Fatalf("unexpected merge: %+v", got)
	}

	full := FullPatch(Expense{ID: "1", Category: "Food", Amount: 0, Description: "groceries"})
	b, _ = json.Marshal(full)
	if string(b) != `{"category":"Food","amount":0,"description":"groceries"}` {
		t.Fatalf("unexpected full patch: %s", b)
	}

	if !(ExpensePatch{}).IsEmpty() || full.IsEmpty() {
		t.Fatalf("IsEmpty mismatch")
	}
}

func TestNewActivityEvent(t *testing.T) {
	a := NewActivityEvent(ActivityTopUp)
	b := NewActivityEvent(ActivityTopUp)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if !a.Kind.IsValid() || ActivityKind("bogus").IsValid() {
		t.Fatalf("kind validation mismatch")
	}
}
