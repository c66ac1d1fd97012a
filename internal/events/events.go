// Package events publishes entity-change messages after a mutation commits.
//
// Publishing is strictly post-commit and best-effort: a broker outage must
// never fail or roll back a ledger operation, so failures are logged and
// dropped. Consumers treat the stream as a change notification, not as the
// source of truth; the audit log is.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"duit/internal/core"
)

// Event describes one committed mutation.
type Event struct {
	Table      string           `json:"table"`
	Action     core.AuditAction `json:"action"`
	RecordID   string           `json:"record_id"`
	UserID     string           `json:"user_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewEvent(table string, action core.AuditAction, recordID, userID string) Event {
	return Event{
		Table:      table,
		Action:     action,
		RecordID:   recordID,
		UserID:     userID,
		OccurredAt: time.Now(),
	}
}

// ToJSON converts the event to its wire form.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes a wire-form event.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Publisher is implemented by the AMQP client; any broker that can carry a
// small JSON message would do.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Emit publishes an event if a publisher is configured. Nil publishers and
// publish failures are both tolerated.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"table", e.Table,
			"action", e.Action,
			"record_id", e.RecordID,
			"error", err)
	}
}
