package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"example.com/focusforge/internal/events"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PersistenceHandler appends consumed activity events to the audit log.
type PersistenceHandler struct {
	db Execer
}

// NewPersistenceHandler constructs a handler backed by the provided database.
func NewPersistenceHandler(db Execer) *PersistenceHandler {
	return &PersistenceHandler{db: db}
}

// Handle stores an activity.recorded payload in activity_event_log. Redelivered events are
// ignored by event id, and other event types are acknowledged without being stored.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.ActivityRecordedType {
		return nil
	}

	var event events.ActivityRecorded
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode %s: %w", msg.EventType, err)
	}
	if event.EventID == "" || event.UserID == "" {
		return fmt.Errorf("decode %s: missing event_id or user_id", msg.EventType)
	}
	day, err := time.Parse(time.DateOnly, event.Day)
	if err != nil {
		return fmt.Errorf("decode %s: invalid day %q", msg.EventType, event.Day)
	}

	_, err = h.db.Exec(ctx,
		`INSERT INTO activity_event_log (event_id, user_id, day, seconds, is_productive, activity_type, url, recorded_at, topic, kafka_offset)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (event_id) DO NOTHING`,
		event.EventID,
		event.UserID,
		day,
		event.Seconds,
		event.IsProductive,
		event.ActivityType,
		event.URL,
		event.RecordedAt,
		msg.Topic,
		msg.Offset,
	)
	return err
}
