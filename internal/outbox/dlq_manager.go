package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const maxReplayDelay = time.Hour

// DLQManager replays dead-lettered events into the outbox and quarantines entries
// that keep failing.
type DLQManager struct {
	db         DB
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager.
func NewDLQManager(db DB, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{db: db, maxRetries: maxRetries, baseDelay: baseDelay}
}

const selectDue = `SELECT dlq_id, event_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, retry_count
        FROM outbox_dlq
        WHERE quarantined_at IS NULL AND next_retry_at <= NOW()
        ORDER BY created_at
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

// RunOnce handles one batch of due entries and returns how many were requeued.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (requeued int, err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, selectDue, batchSize)
	if err != nil {
		return 0, err
	}
	entries := make([]dlqEntry, 0, batchSize)
	for rows.Next() {
		var entry dlqEntry
		if err = rows.Scan(&entry.ID, &entry.EventID, &entry.AggregateType, &entry.AggregateID, &entry.EventType, &entry.Topic, &entry.PartitionKey, &entry.Payload, &entry.RetryCount); err != nil {
			rows.Close()
			return 0, err
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	for _, entry := range entries {
		ok, handleErr := m.handleEntry(ctx, tx, entry)
		if handleErr != nil {
			err = errors.Join(err, handleErr)
			continue
		}
		if ok {
			requeued++
		}
	}
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return requeued, nil
}

func (m *DLQManager) handleEntry(ctx context.Context, tx pgx.Tx, entry dlqEntry) (bool, error) {
	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, "retry limit reached", entry.ID); err != nil {
			return false, err
		}
		countTopic(stageQuarantined, entry.Topic)
		return false, nil
	}

	if _, ok := knownEvents[entry.EventType]; !ok {
		delay := m.backoffDelay(entry.RetryCount + 1)
		if _, err := tx.Exec(ctx,
			`UPDATE outbox_dlq
			    SET retry_count = retry_count + 1,
			        last_attempt_at = NOW(),
			        next_retry_at = NOW() + $1::interval,
			        reason = $2
			  WHERE dlq_id = $3`,
			delay, fmt.Sprintf("unknown event_type=%s", entry.EventType), entry.ID,
		); err != nil {
			return false, err
		}
		countTopic(stageRetryScheduled, entry.Topic)
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.AggregateType, entry.AggregateID, entry.EventType, entry.Topic, entry.PartitionKey, entry.Payload,
	); err != nil {
		return false, fmt.Errorf("requeue dlq entry %d: %w", entry.ID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return false, err
	}
	countTopic(stageRequeued, entry.Topic)
	return true, nil
}

// backoffDelay doubles baseDelay per attempt, capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := m.baseDelay
	for i := 1; i < attempt && delay < maxReplayDelay; i++ {
		delay *= 2
	}
	if delay > maxReplayDelay {
		delay = maxReplayDelay
	}
	return delay
}

type dlqEntry struct {
	ID            int64
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       []byte
	RetryCount    int
}

// UpdateBacklog refreshes the backlog gauge from the table.
func (m *DLQManager) UpdateBacklog(ctx context.Context) error {
	var count int64
	if err := m.db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return err
	}
	dlqBacklogGauge.Set(float64(count))
	return nil
}
