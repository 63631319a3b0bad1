package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

type fakeActivityStore struct {
	mu      sync.Mutex
	writes  int
	events  map[string]core.ActivityEvent
	order   []string
	failErr error
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{events: make(map[string]core.ActivityEvent)}
}

func (s *fakeActivityStore) RecordActivity(_ context.Context, ev core.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.writes++
	if _, ok := s.events[ev.ID]; ok {
		return nil
	}
	s.events[ev.ID] = ev
	s.order = append(s.order, ev.ID)
	return nil
}

func (s *fakeActivityStore) ListActivity(_ context.Context, limit int) ([]core.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	var out []core.ActivityEvent
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[s.order[i]])
	}
	return out, nil
}

func TestHandleActivityMessageRecords(t *testing.T) {
	store := newFakeActivityStore()
	w := NewAuditWorker(store, log.Discard())

	ev := core.NewActivityEvent(core.ActivityExpenseRecorded)
	ev.Category = "Food"
	ev.Amount = 7
	msg := amqp.NewActivityMessage(ev)

	if err := w.HandleActivityMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	// Redelivery must not duplicate the entry.
	if err := w.HandleActivityMessage(context.Background(), msg); err != nil {
		t.Fatalf("redeliver: %v", err)
	}

	got, err := store.ListActivity(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != ev.ID || got[0].Category != "Food" {
		t.Fatalf("unexpected trail: %+v", got)
	}
	if store.writes != 1 {
		t.Errorf("redelivery should be skipped before the store, got %d writes", store.writes)
	}
	if !w.RecentEvents().Contains(ev.ID) {
		t.Error("recorded id should be remembered")
	}
}

func TestFailedRecordIsNotRemembered(t *testing.T) {
	store := newFakeActivityStore()
	store.failErr = errors.New("busy")
	w := NewAuditWorker(store, log.Discard())
	msg := amqp.NewActivityMessage(core.NewActivityEvent(core.ActivityTopUp))

	if err := w.HandleActivityMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error")
	}
	store.failErr = nil
	if err := w.HandleActivityMessage(context.Background(), msg); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if store.writes != 1 {
		t.Errorf("retry must reach the store, got %d writes", store.writes)
	}
}

func TestHandleActivityMessageStoreError(t *testing.T) {
	store := newFakeActivityStore()
	store.failErr = errors.New("disk full")
	w := NewAuditWorker(store, nil)

	err := w.HandleActivityMessage(context.Background(), amqp.NewActivityMessage(core.NewActivityEvent(core.ActivityTopUp)))
	if !errors.Is(err, store.failErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestStartupReport(t *testing.T) {
	store := newFakeActivityStore()
	w := NewAuditWorker(store, log.Discard())
	ctx := context.Background()

	if err := w.StartupReport(ctx, 5); err != nil {
		t.Fatalf("empty trail: %v", err)
	}

	ev := core.NewActivityEvent(core.ActivityBalanceReset)
	ev.OccurredAt = time.Now().UTC()
	_ = store.RecordActivity(ctx, ev)
	if err := w.StartupReport(ctx, 5); err != nil {
		t.Fatalf("report: %v", err)
	}

	store.failErr = errors.New("locked")
	if err := w.StartupReport(ctx, 5); err == nil {
		t.Fatal("expected list error")
	}
}
