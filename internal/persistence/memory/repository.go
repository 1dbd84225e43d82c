// Package memory provides an in-process day aggregate store for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/focusforge/internal/domain"
)

type dayKey struct {
	userID string
	day    time.Time
}

// Repository keeps day aggregates in memory. A single mutex serialises writes, so every
// RecordActivity is atomic for its (user, day).
type Repository struct {
	mu          sync.RWMutex
	days        map[dayKey]*domain.DayAggregate
	screenshots map[dayKey][]domain.Screenshot
	now         func() time.Time
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		days:        make(map[dayKey]*domain.DayAggregate),
		screenshots: make(map[dayKey][]domain.Screenshot),
		now:         time.Now,
	}
}

// RecordActivity implements aggregate.Repository.
func (r *Repository) RecordActivity(ctx context.Context, input domain.RecordInput) (*domain.DayAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dayKey{userID: input.UserID, day: input.Date}
	now := r.now().UTC()
	day, ok := r.days[key]
	if !ok {
		day = &domain.DayAggregate{
			UserID:       input.UserID,
			Date:         input.Date,
			ActivityTime: make(map[string]int64),
			CreatedAt:    now,
		}
		r.days[key] = day
	}

	entry := domain.HourlyEntry{Hour: input.Hour}
	if input.IsProductive {
		day.ProductiveTime += input.Seconds
		entry.ProductiveTime = input.Seconds
	} else {
		day.UnproductiveTime += input.Seconds
		entry.UnproductiveTime = input.Seconds
	}
	if input.ActivityType != "" && input.ActivityType != domain.ActivityUnknown {
		day.ActivityTime[input.ActivityType] += input.Seconds
	}
	day.HourlyData = append(day.HourlyData, entry)
	day.History = append(day.History, input.History)
	if overflow := len(day.History) - domain.HistoryCapacity; overflow > 0 {
		day.History = append([]domain.HistoryEntry(nil), day.History[overflow:]...)
	}
	day.UpdatedAt = now

	if input.Screenshot != nil {
		r.screenshots[key] = append(r.screenshots[key], *input.Screenshot)
	}

	clone := cloneDay(*day)
	return &clone, nil
}

// GetDay returns the aggregate for the day or nil when nothing was recorded.
func (r *Repository) GetDay(ctx context.Context, userID string, day time.Time) (*domain.DayAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agg, ok := r.days[dayKey{userID: userID, day: day}]
	if !ok {
		return nil, nil
	}
	clone := cloneDay(*agg)
	return &clone, nil
}

// ListDays returns the user's aggregates within [from, to], oldest first.
func (r *Repository) ListDays(ctx context.Context, userID string, from, to time.Time) ([]domain.DayAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.DayAggregate, 0)
	for key, agg := range r.days {
		if key.userID != userID || key.day.Before(from) || key.day.After(to) {
			continue
		}
		out = append(out, cloneDay(*agg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListHistory pages through a day's history, newest first.
func (r *Repository) ListHistory(ctx context.Context, userID string, day time.Time, cursor *domain.Cursor, limit int) ([]domain.HistoryEntry, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agg, ok := r.days[dayKey{userID: userID, day: day}]
	if !ok {
		return []domain.HistoryEntry{}, nil, nil
	}

	entries := append([]domain.HistoryEntry(nil), agg.History...)
	sort.SliceStable(entries, func(i, j int) bool { return newer(entries[i], entries[j]) })

	results := make([]domain.HistoryEntry, 0, limit)
	for _, entry := range entries {
		if cursor != nil && !before(entry, *cursor) {
			continue
		}
		results = append(results, entry)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{RecordedAt: last.RecordedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListScreenshots returns the screenshots stored for the day in capture order.
func (r *Repository) ListScreenshots(ctx context.Context, userID string, day time.Time) ([]domain.Screenshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shots := r.screenshots[dayKey{userID: userID, day: day}]
	return append([]domain.Screenshot{}, shots...), nil
}

func newer(a, b domain.HistoryEntry) bool {
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.After(b.RecordedAt)
	}
	return a.ID > b.ID
}

// before reports whether entry sorts strictly after the cursor position.
func before(entry domain.HistoryEntry, cursor domain.Cursor) bool {
	if !entry.RecordedAt.Equal(cursor.RecordedAt) {
		return entry.RecordedAt.Before(cursor.RecordedAt)
	}
	return entry.ID < cursor.ID
}

func cloneDay(day domain.DayAggregate) domain.DayAggregate {
	activity := make(map[string]int64, len(day.ActivityTime))
	for k, v := range day.ActivityTime {
		activity[k] = v
	}
	day.ActivityTime = activity
	day.HourlyData = append([]domain.HourlyEntry(nil), day.HourlyData...)
	day.History = append([]domain.HistoryEntry(nil), day.History...)
	return day
}
