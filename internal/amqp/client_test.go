package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expensetracker/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{64, 30 * time.Second}, // no overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection error", errors.New("connection refused"), true},
		{"closed connection error", errors.New("connection closed"), true},
		{"EOF error", errors.New("unexpected EOF"), true},
		{"broken pipe error", errors.New("broken pipe"), true},
		{"closed network connection error", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestCircuitBreaker(t *testing.T) {
	client := &Client{}

	if client.isCircuitOpen() {
		t.Fatal("new client should have a closed circuit")
	}

	for i := 0; i < maxFailures-1; i++ {
		client.recordFailure()
	}
	if client.isCircuitOpen() {
		t.Fatalf("circuit should stay closed below %d failures", maxFailures)
	}

	client.recordFailure()
	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Fatal("circuit should open after max failures")
	}
	if !client.isCircuitOpen() {
		t.Fatal("open circuit should reject calls")
	}

	// Pretend the open timeout has elapsed.
	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should allow a probe after the open timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatal("circuit should be half-open after the timeout")
	}

	// A failed probe reopens immediately.
	client.recordFailure()
	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Fatal("failed probe should reopen the circuit")
	}

	client.recordSuccess()
	if atomic.LoadInt32(&client.state) != StateClosed {
		t.Fatal("success should close the circuit")
	}
	if atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should reset the failure count")
	}
}

func TestPublishActivityCircuitOpen(t *testing.T) {
	client := &Client{state: StateOpen, lastFailure: time.Now()}

	err := client.PublishActivity(context.Background(), core.NewActivityEvent(core.ActivityTopUp))
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("expected circuit breaker error, got %v", err)
	}
}

func TestPublishActivityCancelledContext(t *testing.T) {
	client := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.PublishActivity(ctx, core.NewActivityEvent(core.ActivityTopUp))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestActivityMessageJSON(t *testing.T) {
	ev := core.NewActivityEvent(core.ActivityExpenseRecorded)
	ev.ExpenseID = "2"
	ev.Category = "Food"
	ev.Amount = 12.5
	ev.Balance = 87.5

	data, err := NewActivityMessage(ev).ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := ActivityMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.Event.ID != ev.ID || got.Event.Kind != ev.Kind || got.Event.Category != "Food" || got.Event.Amount != 12.5 {
		t.Errorf("event mismatch: %+v", got.Event)
	}
	if got.PublishedAt.IsZero() {
		t.Error("PublishedAt should be set")
	}
}

func TestActivityMessageFromJSONRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing id", `{"event":{"kind":"top_up"}}`},
		{"unknown kind", `{"event":{"id":"01J","kind":"withdraw"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ActivityMessageFromJSON([]byte(tt.body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

type fakeAck struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	valid, _ := NewActivityMessage(core.NewActivityEvent(core.ActivityBalanceReset)).ToJSON()
	ok := func(context.Context, *ActivityMessage) error { return nil }
	failing := func(context.Context, *ActivityMessage) error { return errors.New("db down") }

	tests := []struct {
		name    string
		body    []byte
		handler func(context.Context, *ActivityMessage) error
		want    fakeAck
	}{
		{"success acks", valid, ok, fakeAck{acked: true}},
		{"handler error requeues", valid, failing, fakeAck{nacked: true, requeued: true}},
		{"malformed is dropped", []byte(`nope`), ok, fakeAck{nacked: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ack fakeAck
			handleDelivery(context.Background(), &ack, tt.body, tt.handler)
			if ack != tt.want {
				t.Errorf("got %+v, want %+v", ack, tt.want)
			}
		})
	}
}
