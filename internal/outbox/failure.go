package outbox

import (
	"context"
	"fmt"
)

// DLQWriter persists events that could not be published.
type DLQWriter struct {
	db DB
}

// NewDLQWriter initialises a writer backed by the provided database.
func NewDLQWriter(db DB) *DLQWriter {
	return &DLQWriter{db: db}
}

// Write records a failed outbox message alongside the supplied reason.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	if _, err := w.db.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, reason)
	         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Topic, msg.PartitionKey, msg.Payload, reason,
	); err != nil {
		return fmt.Errorf("write dlq entry %d: %w", msg.EventID, err)
	}
	return nil
}
