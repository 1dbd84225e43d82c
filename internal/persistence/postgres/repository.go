// Package postgres stores day aggregates in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/focusforge/internal/domain"
	"example.com/focusforge/internal/events"
)

// DB is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repository provides Postgres-backed persistence for day aggregates and outbox events.
type Repository struct {
	db DB
}

// NewRepository constructs a Repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const upsertDay = `INSERT INTO day_aggregates (user_id, day, productive_seconds, unproductive_seconds, activity_seconds, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, day) DO UPDATE SET
            productive_seconds = day_aggregates.productive_seconds + EXCLUDED.productive_seconds,
            unproductive_seconds = day_aggregates.unproductive_seconds + EXCLUDED.unproductive_seconds,
            activity_seconds = CASE WHEN $7::text = '' THEN day_aggregates.activity_seconds
                ELSE jsonb_set(day_aggregates.activity_seconds, ARRAY[$7::text],
                    to_jsonb(COALESCE((day_aggregates.activity_seconds ->> $7::text)::bigint, 0) + $8::bigint)) END,
            updated_at = EXCLUDED.updated_at
        RETURNING productive_seconds, unproductive_seconds, activity_seconds, created_at, updated_at`

const insertHourly = `INSERT INTO hourly_entries (user_id, day, hour, productive_seconds, unproductive_seconds, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

const insertHistory = `INSERT INTO history_entries (entry_id, user_id, day, url, text, image_ref, activity_type, is_productive, score, seconds, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const trimHistory = `DELETE FROM history_entries
        WHERE user_id = $1 AND day = $2 AND seq NOT IN (
            SELECT seq FROM history_entries WHERE user_id = $1 AND day = $2 ORDER BY seq DESC LIMIT $3)`

const insertScreenshot = `INSERT INTO screenshots (screenshot_id, user_id, day, url, image_base64, captured_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

const insertOutbox = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

// RecordActivity applies one increment inside a single transaction. The day row is
// created or incremented by one upsert, which also serialises concurrent writers for the
// same (user, day) until commit.
func (r *Repository) RecordActivity(ctx context.Context, input domain.RecordInput) (agg *domain.DayAggregate, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapError(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var productive, unproductive int64
	initial := map[string]int64{}
	if input.IsProductive {
		productive = input.Seconds
	} else {
		unproductive = input.Seconds
	}
	counted := input.ActivityType
	if counted == domain.ActivityUnknown {
		counted = ""
	}
	if counted != "" {
		initial[counted] = input.Seconds
	}
	initialJSON, err := json.Marshal(initial)
	if err != nil {
		return nil, err
	}

	now := input.History.RecordedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	day := domain.DayAggregate{UserID: input.UserID, Date: input.Date}
	err = tx.QueryRow(ctx, upsertDay,
		input.UserID, input.Date, productive, unproductive, initialJSON, now,
		counted, input.Seconds,
	).Scan(&day.ProductiveTime, &day.UnproductiveTime, &day.ActivityTime, &day.CreatedAt, &day.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "upsert day")
	}

	if _, err = tx.Exec(ctx, insertHourly, input.UserID, input.Date, input.Hour, productive, unproductive, now); err != nil {
		return nil, mapError(err, "insert hourly entry")
	}

	entry := input.History
	if _, err = tx.Exec(ctx, insertHistory,
		entry.ID, input.UserID, input.Date, entry.URL, entry.Text, entry.ImageRef,
		entry.ActivityType, entry.IsProductive, entry.Score, entry.Seconds, entry.RecordedAt,
	); err != nil {
		return nil, mapError(err, "insert history entry")
	}
	if _, err = tx.Exec(ctx, trimHistory, input.UserID, input.Date, domain.HistoryCapacity); err != nil {
		return nil, mapError(err, "trim history")
	}

	if shot := input.Screenshot; shot != nil {
		if _, err = tx.Exec(ctx, insertScreenshot, shot.ID, shot.UserID, shot.Date, shot.URL, shot.ImageBase64, shot.CapturedAt); err != nil {
			return nil, mapError(err, "insert screenshot")
		}
	}

	if err = r.insertOutbox(ctx, tx, input); err != nil {
		return nil, err
	}

	day.HourlyData, err = queryHourly(ctx, tx, input.UserID, input.Date, input.Date)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, mapError(err, "commit")
	}
	return &day, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, input domain.RecordInput) error {
	event := events.ActivityRecorded{
		EventID:      input.History.ID,
		UserID:       input.UserID,
		Day:          domain.FormatDay(input.Date),
		Hour:         input.Hour,
		Seconds:      input.Seconds,
		IsProductive: input.IsProductive,
		ActivityType: input.History.ActivityType,
		URL:          input.History.URL,
		Score:        input.History.Score,
		RecordedAt:   input.History.RecordedAt,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	dedupeKey := fmt.Sprintf("%s:%s", event.EventID, events.ActivityRecordedType)
	if _, err := tx.Exec(ctx, insertOutbox,
		"day_aggregate",
		input.UserID+":"+event.Day,
		events.ActivityRecordedType,
		events.ActivityRecordedTopic,
		event.PartitionKey(),
		body,
		dedupeKey,
	); err != nil {
		return mapError(err, "insert outbox")
	}
	return nil
}

// GetDay returns the day aggregate with its hourly entries and history, or nil.
func (r *Repository) GetDay(ctx context.Context, userID string, day time.Time) (*domain.DayAggregate, error) {
	days, err := r.ListDays(ctx, userID, day, day)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}
	agg := days[0]

	query, args, err := historyQuery(userID, day, nil, domain.HistoryCapacity).ToSql()
	if err != nil {
		return nil, err
	}
	agg.History, err = scanHistory(ctx, r.db, query, args)
	if err != nil {
		return nil, err
	}
	// Stored oldest first like the in-memory ring.
	for i, j := 0, len(agg.History)-1; i < j; i, j = i+1, j-1 {
		agg.History[i], agg.History[j] = agg.History[j], agg.History[i]
	}
	return &agg, nil
}

// ListDays returns aggregates in [from, to] with their hourly entries, oldest first.
func (r *Repository) ListDays(ctx context.Context, userID string, from, to time.Time) ([]domain.DayAggregate, error) {
	query, args, err := psql.
		Select("day", "productive_seconds", "unproductive_seconds", "activity_seconds", "created_at", "updated_at").
		From("day_aggregates").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"day": from}).
		Where(squirrel.LtOrEq{"day": to}).
		OrderBy("day ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list days")
	}
	defer rows.Close()

	results := make([]domain.DayAggregate, 0)
	for rows.Next() {
		agg := domain.DayAggregate{UserID: userID}
		if err := rows.Scan(&agg.Date, &agg.ProductiveTime, &agg.UnproductiveTime, &agg.ActivityTime, &agg.CreatedAt, &agg.UpdatedAt); err != nil {
			return nil, mapError(err, "scan day")
		}
		results = append(results, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list days")
	}
	if len(results) == 0 {
		return results, nil
	}

	hourly, err := queryHourlyByDay(ctx, r.db, userID, from, to)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].HourlyData = hourly[results[i].Date]
	}
	return results, nil
}

// ListHistory pages through a day's history, newest first.
func (r *Repository) ListHistory(ctx context.Context, userID string, day time.Time, cursor *domain.Cursor, limit int) ([]domain.HistoryEntry, *domain.Cursor, error) {
	query, args, err := historyQuery(userID, day, cursor, limit).ToSql()
	if err != nil {
		return nil, nil, err
	}
	results, err := scanHistory(ctx, r.db, query, args)
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{RecordedAt: last.RecordedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListScreenshots returns the day's screenshots in capture order.
func (r *Repository) ListScreenshots(ctx context.Context, userID string, day time.Time) ([]domain.Screenshot, error) {
	query, args, err := psql.
		Select("screenshot_id::text", "url", "image_base64", "captured_at").
		From("screenshots").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"day": day}).
		OrderBy("captured_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list screenshots")
	}
	defer rows.Close()

	shots := make([]domain.Screenshot, 0)
	for rows.Next() {
		shot := domain.Screenshot{UserID: userID, Date: day}
		if err := rows.Scan(&shot.ID, &shot.URL, &shot.ImageBase64, &shot.CapturedAt); err != nil {
			return nil, mapError(err, "scan screenshot")
		}
		shots = append(shots, shot)
	}
	return shots, mapError(rows.Err(), "list screenshots")
}

func historyQuery(userID string, day time.Time, cursor *domain.Cursor, limit int) squirrel.SelectBuilder {
	builder := psql.
		Select("entry_id::text", "url", "text", "image_ref", "activity_type", "is_productive", "score", "seconds", "recorded_at").
		From("history_entries").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"day": day})
	if cursor != nil {
		builder = builder.Where(squirrel.Expr("(recorded_at, entry_id) < (?, ?::uuid)", cursor.RecordedAt, cursor.ID))
	}
	return builder.OrderBy("recorded_at DESC", "entry_id DESC").Limit(uint64(limit))
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanHistory(ctx context.Context, q querier, query string, args []any) ([]domain.HistoryEntry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list history")
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.URL, &e.Text, &e.ImageRef, &e.ActivityType, &e.IsProductive, &e.Score, &e.Seconds, &e.RecordedAt); err != nil {
			return nil, mapError(err, "scan history")
		}
		entries = append(entries, e)
	}
	return entries, mapError(rows.Err(), "list history")
}

func queryHourly(ctx context.Context, q querier, userID string, from, to time.Time) ([]domain.HourlyEntry, error) {
	byDay, err := queryHourlyByDay(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	return byDay[from], nil
}

func queryHourlyByDay(ctx context.Context, q querier, userID string, from, to time.Time) (map[time.Time][]domain.HourlyEntry, error) {
	query, args, err := psql.
		Select("day", "hour", "productive_seconds", "unproductive_seconds").
		From("hourly_entries").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"day": from}).
		Where(squirrel.LtOrEq{"day": to}).
		OrderBy("entry_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list hourly entries")
	}
	defer rows.Close()

	out := make(map[time.Time][]domain.HourlyEntry)
	for rows.Next() {
		var (
			day   time.Time
			entry domain.HourlyEntry
		)
		if err := rows.Scan(&day, &entry.Hour, &entry.ProductiveTime, &entry.UnproductiveTime); err != nil {
			return nil, mapError(err, "scan hourly entry")
		}
		out[day] = append(out[day], entry)
	}
	return out, mapError(rows.Err(), "list hourly entries")
}

// mapError converts pgx errors to domain errors. Context errors pass through.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514": // check_violation
			return fmt.Errorf("%s: %w", op, &domain.Error{Kind: domain.ErrInvalidInput, Detail: pgErr.Message})
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
