package outbox

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/focusforge/internal/events"
)

var dlqColumns = []string{"dlq_id", "event_id", "aggregate_type", "aggregate_id", "event_type", "topic", "partition_key", "payload", "retry_count"}

func TestDLQManagerRequeuesAndQuarantines(t *testing.T) {
	mock := newMock(t)
	manager := NewDLQManager(mock, 3, time.Minute)
	payload := []byte(`{"user_id":"user-1"}`)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM outbox_dlq`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(dlqColumns).
			AddRow(int64(1), int64(11), "day_aggregate", "user-1:2025-06-10", events.ActivityRecordedType, events.ActivityRecordedTopic, "user-1", payload, 0).
			AddRow(int64(2), int64(12), "day_aggregate", "user-2:2025-06-10", events.ActivityRecordedType, events.ActivityRecordedTopic, "user-2", payload, 3))
	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs("day_aggregate", "user-1:2025-06-10", events.ActivityRecordedType, events.ActivityRecordedTopic, "user-1", payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM outbox_dlq`).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE outbox_dlq SET quarantined_at`).
		WithArgs("retry limit reached", int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	beforeQuarantined := stageCount(stageQuarantined)

	requeued, err := manager.RunOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, requeued)
	require.NoError(t, mock.ExpectationsWereMet())
	require.InDelta(t, beforeQuarantined+1, stageCount(stageQuarantined), 0.0001)
}

func TestDLQBackoffDelayIsCapped(t *testing.T) {
	manager := NewDLQManager(nil, 0, time.Minute)
	require.Equal(t, time.Minute, manager.backoffDelay(1))
	require.Equal(t, 4*time.Minute, manager.backoffDelay(3))
	require.Equal(t, time.Hour, manager.backoffDelay(12))
}

func TestDLQBacklogGauge(t *testing.T) {
	mock := newMock(t)
	manager := NewDLQManager(mock, 3, time.Minute)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM outbox_dlq`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	require.NoError(t, manager.UpdateBacklog(context.Background()))
	require.InDelta(t, 4, testutil.ToFloat64(dlqBacklogGauge), 0.0001)
	require.NoError(t, mock.ExpectationsWereMet())
}
