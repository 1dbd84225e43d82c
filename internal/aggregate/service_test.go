package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/focusforge/internal/domain"
	"example.com/focusforge/internal/persistence/memory"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, at time.Time) (*Service, *memory.Repository, *fixedClock) {
	t.Helper()
	repo := memory.NewRepository()
	clock := &fixedClock{now: at}
	return NewService(repo, WithClock(clock.Now)), repo, clock
}

func TestRecordActivityResolvesUnknownToStudying(t *testing.T) {
	svc, repo, _ := newTestService(t, time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC))
	ctx := context.Background()

	summary, err := svc.RecordActivity(ctx, UpdateInput{UserID: "user-1", Seconds: 120, IsProductive: true, ActivityType: domain.ActivityUnknown})
	require.NoError(t, err)
	require.EqualValues(t, 120, summary.Totals.ProductiveTime)
	require.Equal(t, map[string]int64{domain.ActivityStudying: 120}, summary.ActivityTime)

	_, err = svc.RecordActivity(ctx, UpdateInput{UserID: "user-1", Seconds: 60, IsProductive: false})
	require.NoError(t, err)

	day, err := repo.GetDay(ctx, "user-1", svc.Today())
	require.NoError(t, err)
	require.Len(t, day.History, 2)
	var historySeconds int64
	for _, entry := range day.History {
		require.Equal(t, domain.ActivityStudying, entry.ActivityType)
		historySeconds += entry.Seconds
	}
	require.NotContains(t, day.ActivityTime, domain.ActivityUnknown)
	require.Equal(t, historySeconds, day.ActivityTime[domain.ActivityStudying])

	categories, err := svc.Categories(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, []CategoryTotal{{Category: domain.ActivityStudying, Seconds: 180}}, categories)
}

func TestRecordActivityUsesLocationForDayAndHour(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	repo := memory.NewRepository()
	at := time.Date(2025, 6, 10, 20, 15, 0, 0, time.UTC) // 05:15 on the 11th in UTC+9
	svc := NewService(repo, WithClock(func() time.Time { return at }), WithLocation(loc))

	summary, err := svc.RecordActivity(context.Background(), UpdateInput{UserID: "user-1", Seconds: 30, IsProductive: true, ActivityType: domain.ActivityCoding})
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), summary.Date)
	require.EqualValues(t, 30, summary.Hourly[5].ProductiveTime)
}

func TestRecordActivityValidation(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now())
	ctx := context.Background()
	bad := 1.5

	cases := []UpdateInput{
		{Seconds: 10},
		{UserID: "user-1", Seconds: 0},
		{UserID: "user-1", Seconds: -5},
		{UserID: "user-1", Seconds: 90000},
		{UserID: "user-1", Seconds: 10, Score: &bad},
	}
	for _, input := range cases {
		_, err := svc.RecordActivity(ctx, input)
		require.True(t, errors.Is(err, domain.ErrInvalidInput), "input %+v", input)
	}
}

func TestRecordActivityStoresScreenshot(t *testing.T) {
	svc, repo, _ := newTestService(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.RecordActivity(ctx, UpdateInput{UserID: "user-1", Seconds: 30, IsProductive: true, URL: "https://meet.google.com/abc", ImageBase64: "aGVsbG8="})
	require.NoError(t, err)

	shots, err := svc.ScreenshotsToday(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, shots, 1)

	day, err := repo.GetDay(ctx, "user-1", svc.Today())
	require.NoError(t, err)
	require.Equal(t, shots[0].ID, day.History[0].ImageRef)
}

func TestRollupsAndStreakAcrossDays(t *testing.T) {
	svc, _, clock := newTestService(t, time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordActivity(ctx, UpdateInput{UserID: "user-1", Seconds: 3600, IsProductive: true, ActivityType: domain.ActivityCoding})
		require.NoError(t, err)
		_, err = svc.RecordActivity(ctx, UpdateInput{UserID: "user-1", Seconds: 900, IsProductive: false, ActivityType: domain.ActivityGaming})
		require.NoError(t, err)
		clock.now = clock.now.AddDate(0, 0, 1)
	}
	clock.now = clock.now.AddDate(0, 0, -1)

	week, err := svc.Week(ctx, "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 10800, week.Totals.ProductiveTime)
	require.EqualValues(t, 2700, week.Totals.UnproductiveTime)
	require.Len(t, week.Days, 7)
	require.EqualValues(t, 3600, week.Days[6].Totals.ProductiveTime)

	streak, err := svc.Streak(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, streak)

	categories, err := svc.Categories(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.ActivityCoding, categories[0].Category)

	heatmap, err := svc.Heatmap(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, heatmap, 3)
	require.Equal(t, 1, heatmap[2].Count)

	hours, err := svc.WeeklyHours(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, hours, 7)
	require.EqualValues(t, 3600, hours[6].Hourly[10].ProductiveTime)
}

func TestTodaySummaryEmptyDay(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	summary, err := svc.TodaySummary(context.Background(), "user-1")
	require.NoError(t, err)
	require.Zero(t, summary.Totals.Score)
	require.Len(t, summary.Hourly, 24)
}
