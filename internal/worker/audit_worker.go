// Package worker consumes tracker activity and keeps the audit trail.
package worker

import (
	"context"
	"fmt"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// ActivityStore persists and lists activity events. Recording the same event
// id twice must be a no-op so redelivered messages are harmless.
type ActivityStore interface {
	RecordActivity(ctx context.Context, ev core.ActivityEvent) error
	ListActivity(ctx context.Context, limit int) ([]core.ActivityEvent, error)
}

const (
	recentEventsSize = 1024
	recentEventsTTL  = 10 * time.Minute
)

// AuditWorker writes every consumed activity event to the store. Event ids
// recorded recently are remembered so redeliveries skip the store.
type AuditWorker struct {
	store  ActivityStore
	logger *log.Logger
	recent *cache.LRUCache[struct{}]
}

func NewAuditWorker(store ActivityStore, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditWorker{
		store:  store,
		logger: logger.WithComponent(log.ComponentWorker),
		recent: cache.NewLRUCache[struct{}](recentEventsSize, recentEventsTTL),
	}
}

// RecentEvents is the cache of recorded event ids, for registration with a
// cache.Manager.
func (w *AuditWorker) RecentEvents() *cache.LRUCache[struct{}] {
	return w.recent
}

// HandleActivityMessage records one activity message. A returned error makes
// the consumer requeue the message.
func (w *AuditWorker) HandleActivityMessage(ctx context.Context, msg *amqp.ActivityMessage) error {
	ev := msg.Event
	w.logger.InfoContext(ctx, "Processing activity message",
		log.FieldEventID, ev.ID,
		log.FieldEventKind, string(ev.Kind))

	if w.recent.Contains(ev.ID) {
		w.logger.DebugContext(ctx, "Duplicate delivery skipped", log.FieldEventID, ev.ID)
		return nil
	}

	if err := w.store.RecordActivity(ctx, ev); err != nil {
		return fmt.Errorf("record activity %s: %w", ev.ID, err)
	}
	w.recent.Set(ev.ID, struct{}{})

	w.logger.DebugContext(ctx, "Activity recorded",
		log.FieldEventID, ev.ID,
		log.FieldCategory, ev.Category,
		log.FieldAmount, core.FormatAmount(ev.Amount),
		"lag", msg.PublishedAt.Sub(ev.OccurredAt).String())
	return nil
}

// StartupReport logs the newest recorded events so an operator can see where
// the trail left off.
func (w *AuditWorker) StartupReport(ctx context.Context, limit int) error {
	events, err := w.store.ListActivity(ctx, limit)
	if err != nil {
		return fmt.Errorf("list recent activity: %w", err)
	}
	if len(events) == 0 {
		w.logger.InfoContext(ctx, "Audit trail is empty")
		return nil
	}
	last := events[0]
	w.logger.InfoContext(ctx, "Audit trail loaded",
		"count", len(events),
		log.FieldEventID, last.ID,
		log.FieldEventKind, string(last.Kind),
		"last_occurred_at", last.OccurredAt)
	return nil
}
