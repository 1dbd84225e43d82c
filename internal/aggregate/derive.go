package aggregate

import (
	"math"
	"sort"
	"time"

	"example.com/focusforge/internal/domain"
)

// Totals is a productive/unproductive pair with its score.
type Totals struct {
	ProductiveTime   int64
	UnproductiveTime int64
	Score            int
}

// DayTotals is one row of a per-day breakdown.
type DayTotals struct {
	Date time.Time
	Totals
}

// Rollup sums a window of day aggregates.
type Rollup struct {
	From         time.Time
	To           time.Time
	Totals       Totals
	ActivityTime map[string]int64
	Days         []DayTotals
}

// HeatmapCell is the productive-hour count for one day.
type HeatmapCell struct {
	Date  time.Time
	Count int
}

// DayHours is a 24-bucket breakdown for a single day.
type DayHours struct {
	Date   time.Time
	Hourly []domain.HourBucket
}

// CategoryTotal is the time spent on one activity label.
type CategoryTotal struct {
	Category string
	Seconds  int64
}

func newTotals(productive, unproductive int64) Totals {
	return Totals{
		ProductiveTime:   productive,
		UnproductiveTime: unproductive,
		Score:            domain.Score(productive, unproductive),
	}
}

// SumRange folds the day aggregates into a rollup over [from, to].
// Aggregates outside the window are ignored.
func SumRange(days []domain.DayAggregate, from, to time.Time) Rollup {
	var productive, unproductive int64
	activity := make(map[string]int64)
	for _, day := range inRange(days, from, to) {
		productive += day.ProductiveTime
		unproductive += day.UnproductiveTime
		mergeActivity(activity, day.ActivityTime)
	}
	return Rollup{
		From:         from,
		To:           to,
		Totals:       newTotals(productive, unproductive),
		ActivityTime: activity,
	}
}

// DailyBreakdown returns one row per calendar day in [from, to], oldest first.
// Days without an aggregate are reported as zero.
func DailyBreakdown(days []domain.DayAggregate, from, to time.Time) []DayTotals {
	byDay := indexByDay(days)
	out := make([]DayTotals, 0)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		agg, ok := byDay[day]
		if !ok {
			out = append(out, DayTotals{Date: day, Totals: newTotals(0, 0)})
			continue
		}
		out = append(out, DayTotals{Date: day, Totals: newTotals(agg.ProductiveTime, agg.UnproductiveTime)})
	}
	return out
}

// Heatmap emits one cell per existing aggregate in [from, to] with the productive time in rounded hours.
func Heatmap(days []domain.DayAggregate, from, to time.Time) []HeatmapCell {
	selected := inRange(days, from, to)
	out := make([]HeatmapCell, 0, len(selected))
	for _, day := range selected {
		out = append(out, HeatmapCell{
			Date:  day.Date,
			Count: int(math.Round(float64(day.ProductiveTime) / 3600)),
		})
	}
	return out
}

// SumHourly folds append-only hourly entries into 24 buckets.
// Entries with an out-of-range hour are dropped.
func SumHourly(entries []domain.HourlyEntry) []domain.HourBucket {
	buckets := make([]domain.HourBucket, 24)
	for hour := range buckets {
		buckets[hour].Hour = hour
	}
	for _, entry := range entries {
		if entry.Hour < 0 || entry.Hour > 23 {
			continue
		}
		buckets[entry.Hour].ProductiveTime += entry.ProductiveTime
		buckets[entry.Hour].UnproductiveTime += entry.UnproductiveTime
	}
	return buckets
}

// Categories merges activity time across days and orders it by time spent, then name.
func Categories(days []domain.DayAggregate, from, to time.Time) []CategoryTotal {
	merged := make(map[string]int64)
	for _, day := range inRange(days, from, to) {
		mergeActivity(merged, day.ActivityTime)
	}
	out := make([]CategoryTotal, 0, len(merged))
	for category, seconds := range merged {
		out = append(out, CategoryTotal{Category: category, Seconds: seconds})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seconds != out[j].Seconds {
			return out[i].Seconds > out[j].Seconds
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Streak counts consecutive days ending today with productive time. A missing day or a
// day without productive time ends the walk.
func Streak(days []domain.DayAggregate, today time.Time) int {
	ordered := make([]domain.DayAggregate, 0, len(days))
	for _, day := range days {
		if day.Date.After(today) {
			continue
		}
		ordered = append(ordered, day)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date.After(ordered[j].Date) })

	streak := 0
	expected := today
	for _, day := range ordered {
		if !day.Date.Equal(expected) {
			break
		}
		if day.ProductiveTime <= 0 {
			break
		}
		streak++
		expected = domain.PreviousDay(expected)
	}
	return streak
}

func inRange(days []domain.DayAggregate, from, to time.Time) []domain.DayAggregate {
	out := make([]domain.DayAggregate, 0, len(days))
	for _, day := range days {
		if day.Date.Before(from) || day.Date.After(to) {
			continue
		}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func indexByDay(days []domain.DayAggregate) map[time.Time]domain.DayAggregate {
	out := make(map[time.Time]domain.DayAggregate, len(days))
	for _, day := range days {
		out[day.Date] = day
	}
	return out
}

func mergeActivity(dst, src map[string]int64) {
	for label, seconds := range src {
		if label == "" || label == domain.ActivityUnknown {
			continue
		}
		dst[label] += seconds
	}
}
