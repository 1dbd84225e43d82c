package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/require"

	"example.com/focusforge/internal/domain"
)

var testDay = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func sampleInput() domain.RecordInput {
	at := testDay.Add(9*time.Hour + 30*time.Minute)
	return domain.RecordInput{
		UserID:       "user-1",
		Date:         testDay,
		Hour:         9,
		Seconds:      180,
		IsProductive: true,
		ActivityType: domain.ActivityCoding,
		History: domain.HistoryEntry{
			ID:           "5f0c3a56-8d3f-4a57-9a6a-1d2f1f0c8e11",
			URL:          "https://docs.example.com",
			ActivityType: domain.ActivityCoding,
			IsProductive: true,
			Score:        0.8,
			Seconds:      180,
			RecordedAt:   at,
		},
	}
}

func TestRecordActivityRunsInOneTransaction(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	input := sampleInput()
	now := input.History.RecordedAt

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO day_aggregates`).
		WithArgs("user-1", testDay, int64(180), int64(0), pgxmock.AnyArg(), now, domain.ActivityCoding, int64(180)).
		WillReturnRows(pgxmock.NewRows([]string{"productive_seconds", "unproductive_seconds", "activity_seconds", "created_at", "updated_at"}).
			AddRow(int64(480), int64(60), map[string]int64{domain.ActivityCoding: 480}, now, now))
	mock.ExpectExec(`INSERT INTO hourly_entries`).
		WithArgs("user-1", testDay, 9, int64(180), int64(0), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO history_entries`).
		WithArgs(input.History.ID, "user-1", testDay, input.History.URL, "", "", domain.ActivityCoding, true, 0.8, int64(180), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM history_entries`).
		WithArgs("user-1", testDay, domain.HistoryCapacity).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs("day_aggregate", "user-1:2025-06-10", "activity.recorded", "activity_recorded", "user-1", pgxmock.AnyArg(), input.History.ID+":activity.recorded").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT day, hour, productive_seconds, unproductive_seconds FROM hourly_entries`).
		WithArgs("user-1", testDay, testDay).
		WillReturnRows(pgxmock.NewRows([]string{"day", "hour", "productive_seconds", "unproductive_seconds"}).
			AddRow(testDay, 8, int64(300), int64(60)).
			AddRow(testDay, 9, int64(180), int64(0)))
	mock.ExpectCommit()

	day, err := repo.RecordActivity(context.Background(), input)
	require.NoError(t, err)
	require.EqualValues(t, 480, day.ProductiveTime)
	require.EqualValues(t, 60, day.UnproductiveTime)
	require.Len(t, day.HourlyData, 2)
	require.Equal(t, map[string]int64{domain.ActivityCoding: 480}, day.ActivityTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordActivityRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	input := sampleInput()
	input.History.ActivityType = domain.ActivityUnknown

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO day_aggregates`).
		WillReturnRows(pgxmock.NewRows([]string{"productive_seconds", "unproductive_seconds", "activity_seconds", "created_at", "updated_at"}).
			AddRow(int64(180), int64(0), map[string]int64{}, time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO hourly_entries`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO history_entries`).
		WillReturnError(&pgconn.PgError{Code: "23514", Message: "history_entries_activity_type_check"})
	mock.ExpectRollback()

	_, err := repo.RecordActivity(context.Background(), input)
	require.True(t, errors.Is(err, domain.ErrInvalidInput))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDaysAttachesHourlyEntries(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	from := testDay.AddDate(0, 0, -6)
	now := time.Now()

	mock.ExpectQuery(`SELECT day, productive_seconds, unproductive_seconds, activity_seconds, created_at, updated_at FROM day_aggregates`).
		WithArgs("user-1", from, testDay).
		WillReturnRows(pgxmock.NewRows([]string{"day", "productive_seconds", "unproductive_seconds", "activity_seconds", "created_at", "updated_at"}).
			AddRow(from, int64(60), int64(0), map[string]int64{}, now, now).
			AddRow(testDay, int64(0), int64(30), map[string]int64{domain.ActivityGaming: 30}, now, now))
	mock.ExpectQuery(`FROM hourly_entries`).
		WithArgs("user-1", from, testDay).
		WillReturnRows(pgxmock.NewRows([]string{"day", "hour", "productive_seconds", "unproductive_seconds"}).
			AddRow(from, 10, int64(60), int64(0)).
			AddRow(testDay, 22, int64(0), int64(30)))

	days, err := repo.ListDays(context.Background(), "user-1", from, testDay)
	require.NoError(t, err)
	require.Len(t, days, 2)
	require.Equal(t, []domain.HourlyEntry{{Hour: 10, ProductiveTime: 60}}, days[0].HourlyData)
	require.Equal(t, []domain.HourlyEntry{{Hour: 22, UnproductiveTime: 30}}, days[1].HourlyData)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListHistoryReturnsNextCursor(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	at := testDay.Add(10 * time.Hour)
	cursor := &domain.Cursor{RecordedAt: at.Add(time.Hour), ID: "9b2b1f0e-3c55-4c4e-9d5e-8f7c6a5b4d3c"}

	mock.ExpectQuery(`FROM history_entries WHERE .* AND \(recorded_at, entry_id\) < \(\$3, \$4::uuid\) ORDER BY recorded_at DESC, entry_id DESC LIMIT 2`).
		WithArgs("user-1", testDay, cursor.RecordedAt, cursor.ID).
		WillReturnRows(pgxmock.NewRows([]string{"entry_id", "url", "text", "image_ref", "activity_type", "is_productive", "score", "seconds", "recorded_at"}).
			AddRow("b", "https://a", "", "", domain.ActivityCoding, true, 0.9, int64(60), at.Add(time.Minute)).
			AddRow("a", "https://a", "", "", domain.ActivityCoding, true, 0.9, int64(60), at))

	entries, next, err := repo.ListHistory(context.Background(), "user-1", testDay, cursor, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, &domain.Cursor{RecordedAt: at, ID: "a"}, next)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapErrorKeepsContextErrors(t *testing.T) {
	err := mapError(context.Canceled, "list days")
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, mapError(nil, "noop"))
}
