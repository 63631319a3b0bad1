package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expensetracker/internal/core"
)

// ActivityMessage carries one applied mutation to the audit consumer.
type ActivityMessage struct {
	Event       core.ActivityEvent `json:"event"`
	PublishedAt time.Time          `json:"publishedAt"`
}

// NewActivityMessage wraps ev for publishing
func NewActivityMessage(ev core.ActivityEvent) *ActivityMessage {
	return &ActivityMessage{
		Event:       ev,
		PublishedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityMessageFromJSON decodes and validates a message body.
func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event.ID == "" {
		return nil, fmt.Errorf("activity message without event id")
	}
	if !msg.Event.Kind.IsValid() {
		return nil, fmt.Errorf("activity message %s: unknown kind %q", msg.Event.ID, msg.Event.Kind)
	}
	return &msg, nil
}
