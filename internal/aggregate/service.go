// Package aggregate folds classified activity into per-day aggregates and derives
// the dashboard views (rollups, heatmap, hourly buckets, categories, streak).
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/focusforge/internal/domain"
	"example.com/focusforge/internal/observability"
)

const (
	weekDays     = 7
	monthDays    = 30
	yearDays     = 365
	categoryDays = 30

	// maxSecondsPerUpdate bounds a single increment to one day of tracked time.
	maxSecondsPerUpdate = 24 * 60 * 60

	defaultHistoryLimit = 20
	maxHistoryLimit     = domain.HistoryCapacity
)

// Repository is the storage contract for day aggregates. RecordActivity must apply the
// increment atomically per (user, day) without a read-modify-write cycle.
type Repository interface {
	RecordActivity(ctx context.Context, input domain.RecordInput) (*domain.DayAggregate, error)
	GetDay(ctx context.Context, userID string, day time.Time) (*domain.DayAggregate, error)
	ListDays(ctx context.Context, userID string, from, to time.Time) ([]domain.DayAggregate, error)
	ListHistory(ctx context.Context, userID string, day time.Time, cursor *domain.Cursor, limit int) ([]domain.HistoryEntry, *domain.Cursor, error)
	ListScreenshots(ctx context.Context, userID string, day time.Time) ([]domain.Screenshot, error)
}

// UpdateInput is one time increment reported by the sampler.
type UpdateInput struct {
	UserID       string
	Seconds      int64
	IsProductive bool
	ActivityType string
	URL          string
	Text         string
	ImageBase64  string
	Score        *float64
}

// DaySummary is the today view.
type DaySummary struct {
	Date         time.Time
	Totals       Totals
	ActivityTime map[string]int64
	Hourly       []domain.HourBucket
}

// Service coordinates aggregation writes and reads.
type Service struct {
	repo   Repository
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// Option customises the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the timezone that decides calendar days and hours.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service.
func NewService(repo Repository, opts ...Option) *Service {
	svc := &Service{
		repo:   repo,
		now:    time.Now,
		loc:    time.UTC,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Today returns the current day key in the service timezone.
func (s *Service) Today() time.Time {
	return domain.DayOf(s.now(), s.loc)
}

// RecordActivity validates the increment and folds it into today's aggregate.
func (s *Service) RecordActivity(ctx context.Context, input UpdateInput) (*DaySummary, error) {
	record, err := s.buildRecord(input)
	if err != nil {
		return nil, err
	}

	day, err := s.repo.RecordActivity(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}
	observability.RecordActivity(record.History.RecordedAt, record.IsProductive, record.Seconds)
	s.logger.Debug("activity recorded",
		slog.String("user_id", record.UserID),
		slog.String("day", domain.FormatDay(record.Date)),
		slog.Int64("seconds", record.Seconds),
		slog.Bool("productive", record.IsProductive),
		slog.String("activity_type", record.History.ActivityType),
	)
	summary := summarize(*day)
	return &summary, nil
}

func (s *Service) buildRecord(input UpdateInput) (domain.RecordInput, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return domain.RecordInput{}, domain.InputError("user id is required")
	}
	if input.Seconds <= 0 {
		return domain.RecordInput{}, domain.InputError("seconds must be positive")
	}
	if input.Seconds > maxSecondsPerUpdate {
		return domain.RecordInput{}, domain.InputError("seconds must not exceed %d", maxSecondsPerUpdate)
	}
	var score float64
	if input.Score != nil {
		score = *input.Score
		if score < 0 || score > 1 {
			return domain.RecordInput{}, domain.InputError("score must be within [0,1]")
		}
	}

	now := s.now()
	day := domain.DayOf(now, s.loc)

	// Unknown and missing types fall back to Studying before persistence, so the
	// category totals and the history entry always agree.
	resolved := domain.ResolveActivityType(input.ActivityType)

	entry := domain.HistoryEntry{
		ID:           uuid.NewString(),
		URL:          input.URL,
		Text:         domain.Truncate(input.Text, domain.MaxStoredText),
		ActivityType: resolved,
		IsProductive: input.IsProductive,
		Score:        score,
		Seconds:      input.Seconds,
		RecordedAt:   now.UTC(),
	}

	record := domain.RecordInput{
		UserID:       input.UserID,
		Date:         day,
		Hour:         domain.HourOf(now, s.loc),
		Seconds:      input.Seconds,
		IsProductive: input.IsProductive,
		ActivityType: resolved,
		History:      entry,
	}
	if input.ImageBase64 != "" {
		shot := &domain.Screenshot{
			ID:          uuid.NewString(),
			UserID:      input.UserID,
			Date:        day,
			URL:         input.URL,
			ImageBase64: input.ImageBase64,
			CapturedAt:  now.UTC(),
		}
		record.Screenshot = shot
		record.History.ImageRef = shot.ID
	}
	return record, nil
}

// TodaySummary returns today's totals, categories and 24 hourly buckets.
func (s *Service) TodaySummary(ctx context.Context, userID string) (*DaySummary, error) {
	today := s.Today()
	day, err := s.repo.GetDay(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("load today: %w", err)
	}
	if day == nil {
		day = &domain.DayAggregate{UserID: userID, Date: today}
	}
	summary := summarize(*day)
	return &summary, nil
}

// Week returns the 7-day rollup with a per-day breakdown, oldest first.
func (s *Service) Week(ctx context.Context, userID string) (*Rollup, error) {
	from, to := domain.TrailingRange(s.Today(), weekDays)
	days, err := s.repo.ListDays(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load week: %w", err)
	}
	rollup := SumRange(days, from, to)
	rollup.Days = DailyBreakdown(days, from, to)
	return &rollup, nil
}

// Month returns the 30-day rollup.
func (s *Service) Month(ctx context.Context, userID string) (*Rollup, error) {
	return s.rollup(ctx, userID, monthDays)
}

// Year returns the 365-day rollup.
func (s *Service) Year(ctx context.Context, userID string) (*Rollup, error) {
	return s.rollup(ctx, userID, yearDays)
}

func (s *Service) rollup(ctx context.Context, userID string, window int) (*Rollup, error) {
	from, to := domain.TrailingRange(s.Today(), window)
	days, err := s.repo.ListDays(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load %d day rollup: %w", window, err)
	}
	rollup := SumRange(days, from, to)
	return &rollup, nil
}

// Heatmap returns productive hours per day over the trailing year.
func (s *Service) Heatmap(ctx context.Context, userID string) ([]HeatmapCell, error) {
	from, to := domain.TrailingRange(s.Today(), yearDays)
	days, err := s.repo.ListDays(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load heatmap: %w", err)
	}
	return Heatmap(days, from, to), nil
}

// HourlyToday returns today's 24 hourly buckets.
func (s *Service) HourlyToday(ctx context.Context, userID string) ([]domain.HourBucket, error) {
	day, err := s.repo.GetDay(ctx, userID, s.Today())
	if err != nil {
		return nil, fmt.Errorf("load hourly: %w", err)
	}
	if day == nil {
		return SumHourly(nil), nil
	}
	return SumHourly(day.HourlyData), nil
}

// WeeklyHours returns 24 hourly buckets for each of the last 7 days, oldest first.
func (s *Service) WeeklyHours(ctx context.Context, userID string) ([]DayHours, error) {
	from, to := domain.TrailingRange(s.Today(), weekDays)
	days, err := s.repo.ListDays(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load weekly hours: %w", err)
	}
	byDay := indexByDay(days)
	out := make([]DayHours, 0, weekDays)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		out = append(out, DayHours{Date: day, Hourly: SumHourly(byDay[day].HourlyData)})
	}
	return out, nil
}

// Categories returns activity time merged over the last 30 days, largest first.
func (s *Service) Categories(ctx context.Context, userID string) ([]CategoryTotal, error) {
	from, to := domain.TrailingRange(s.Today(), categoryDays)
	days, err := s.repo.ListDays(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return Categories(days, from, to), nil
}

// Streak returns the number of consecutive productive days ending today.
func (s *Service) Streak(ctx context.Context, userID string) (int, error) {
	today := s.Today()
	from, to := domain.TrailingRange(today, yearDays)
	days, err := s.repo.ListDays(ctx, userID, from, to)
	if err != nil {
		return 0, fmt.Errorf("load streak: %w", err)
	}
	return Streak(days, today), nil
}

// History pages through today's history entries, newest first.
func (s *Service) History(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.HistoryEntry, *domain.Cursor, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	entries, next, err := s.repo.ListHistory(ctx, userID, s.Today(), cursor, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	return entries, next, nil
}

// ScreenshotsToday lists the screenshots captured today.
func (s *Service) ScreenshotsToday(ctx context.Context, userID string) ([]domain.Screenshot, error) {
	shots, err := s.repo.ListScreenshots(ctx, userID, s.Today())
	if err != nil {
		return nil, fmt.Errorf("load screenshots: %w", err)
	}
	return shots, nil
}

func summarize(day domain.DayAggregate) DaySummary {
	activity := make(map[string]int64, len(day.ActivityTime))
	mergeActivity(activity, day.ActivityTime)
	return DaySummary{
		Date:         day.Date,
		Totals:       newTotals(day.ProductiveTime, day.UnproductiveTime),
		ActivityTime: activity,
		Hourly:       SumHourly(day.HourlyData),
	}
}
