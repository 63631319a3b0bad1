package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()

	// No file -> defaults
	s, err := LoadSeed(filepath.Join(dir, "missing.json"))
	if err != nil || len(s.Expenses) != len(DefaultCategories) || s.CurrentBalance != 0 {
		t.Fatalf("expected default seed, got %+v err %v", s, err)
	}

	path := filepath.Join(dir, "seed.json")
	content := `{"currentBalance": 250, "expenses": [{"category":"Rent","amount":0,"description":"flat"},{"category":"Food","amount":3}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err = LoadSeed(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.CurrentBalance != 250 || len(s.Expenses) != 2 || s.Expenses[0].Description != "flat" {
		t.Fatalf("unexpected seed %+v", s)
	}

	if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSeed(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSeedApplyOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed := Seed{CurrentBalance: 10, Expenses: DefaultSeed().Expenses}

	applied, err := seed.Apply(ctx, store)
	if err != nil || !applied {
		t.Fatalf("first apply: %v %v", applied, err)
	}
	if _, err := store.SetBalance(ctx, 99); err != nil {
		t.Fatal(err)
	}

	applied, err = seed.Apply(ctx, store)
	if err != nil || applied {
		t.Fatalf("second apply should be a no-op: %v %v", applied, err)
	}
	if b, _ := store.GetBalance(ctx); b != 99 {
		t.Fatalf("balance overwritten: %v", b)
	}

	all, _ := store.ListExpenses(ctx)
	if len(all) != len(DefaultCategories) || all[0].ID != "1" || all[0].Category != "Entertainment" {
		t.Fatalf("unexpected expenses %+v", all)
	}
}
