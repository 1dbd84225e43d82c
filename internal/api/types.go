package api

import (
	"time"

	"example.com/focusforge/internal/aggregate"
	"example.com/focusforge/internal/domain"
)

// ClassifyRequest is the payload for POST /v1/classify.
type ClassifyRequest struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"imageBase64"`
	URL         string `json:"url"`
}

// ClassifyResponse is the fused decision.
type ClassifyResponse struct {
	Label        string  `json:"label"`
	Score        float64 `json:"score"`
	ActivityType string  `json:"activityType"`
	StoredData   string  `json:"storedData,omitempty"`
	DataType     string  `json:"dataType"`
}

// UpdateTimeRequest is the payload for POST /v1/time/update-time.
type UpdateTimeRequest struct {
	Seconds      *int64   `json:"seconds"`
	IsProductive *bool    `json:"isProductive"`
	ActivityType string   `json:"activityType"`
	URL          string   `json:"url"`
	Text         string   `json:"text"`
	ImageBase64  string   `json:"imageBase64"`
	Score        *float64 `json:"score"`
}

// IncrementRequest is the payload of the single-purpose productive/unproductive endpoints.
type IncrementRequest struct {
	Seconds int64 `json:"seconds"`
}

// HourView is one hourly bucket.
type HourView struct {
	Hour             int   `json:"hour"`
	ProductiveTime   int64 `json:"productiveTime"`
	UnproductiveTime int64 `json:"unproductiveTime"`
}

// SummaryView describes a single day.
type SummaryView struct {
	Date             string           `json:"date"`
	ProductiveTime   int64            `json:"productiveTime"`
	UnproductiveTime int64            `json:"unproductiveTime"`
	Score            int              `json:"score"`
	ActivityTime     map[string]int64 `json:"activityTime"`
	HourlyData       []HourView       `json:"hourlyData"`
}

// DayTotalsView is one row of the week breakdown.
type DayTotalsView struct {
	Date             string `json:"date"`
	ProductiveTime   int64  `json:"productiveTime"`
	UnproductiveTime int64  `json:"unproductiveTime"`
	Score            int    `json:"score"`
}

// RollupView describes a week, month or year.
type RollupView struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	ProductiveTime   int64            `json:"productiveTime"`
	UnproductiveTime int64            `json:"unproductiveTime"`
	Score            int              `json:"score"`
	ActivityTime     map[string]int64 `json:"activityTime"`
	Days             []DayTotalsView  `json:"days,omitempty"`
}

// HeatmapCellView is one heatmap day.
type HeatmapCellView struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DayHoursView is a 24-bucket breakdown for one day.
type DayHoursView struct {
	Date   string     `json:"date"`
	Hourly []HourView `json:"hourly"`
}

// CategoryView is the time spent on one activity label.
type CategoryView struct {
	Category string `json:"category"`
	Seconds  int64  `json:"seconds"`
}

// StreakView wraps the streak length in days.
type StreakView struct {
	Streak int `json:"streak"`
}

// HistoryEntryView is one classified sample.
type HistoryEntryView struct {
	ID           string    `json:"id"`
	URL          string    `json:"url,omitempty"`
	Text         string    `json:"text,omitempty"`
	ImageRef     string    `json:"imageRef,omitempty"`
	ActivityType string    `json:"activityType"`
	IsProductive bool      `json:"isProductive"`
	Score        float64   `json:"score"`
	Seconds      int64     `json:"seconds"`
	RecordedAt   time.Time `json:"recordedAt"`
}

// HistoryResponse packages a history page.
type HistoryResponse struct {
	Items      []HistoryEntryView `json:"items"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

// ScreenshotView is one stored screenshot.
type ScreenshotView struct {
	ID          string    `json:"id"`
	URL         string    `json:"url,omitempty"`
	ImageBase64 string    `json:"imageBase64"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// ScreenshotsResponse lists today's screenshots.
type ScreenshotsResponse struct {
	Items []ScreenshotView `json:"items"`
}

func toHourViews(buckets []domain.HourBucket) []HourView {
	out := make([]HourView, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, HourView{Hour: b.Hour, ProductiveTime: b.ProductiveTime, UnproductiveTime: b.UnproductiveTime})
	}
	return out
}

func toSummaryView(s aggregate.DaySummary) SummaryView {
	return SummaryView{
		Date:             domain.FormatDay(s.Date),
		ProductiveTime:   s.Totals.ProductiveTime,
		UnproductiveTime: s.Totals.UnproductiveTime,
		Score:            s.Totals.Score,
		ActivityTime:     nonNil(s.ActivityTime),
		HourlyData:       toHourViews(s.Hourly),
	}
}

func toRollupView(r aggregate.Rollup) RollupView {
	view := RollupView{
		From:             domain.FormatDay(r.From),
		To:               domain.FormatDay(r.To),
		ProductiveTime:   r.Totals.ProductiveTime,
		UnproductiveTime: r.Totals.UnproductiveTime,
		Score:            r.Totals.Score,
		ActivityTime:     nonNil(r.ActivityTime),
	}
	for _, day := range r.Days {
		view.Days = append(view.Days, DayTotalsView{
			Date:             domain.FormatDay(day.Date),
			ProductiveTime:   day.ProductiveTime,
			UnproductiveTime: day.UnproductiveTime,
			Score:            day.Score,
		})
	}
	return view
}

func toHistoryView(e domain.HistoryEntry) HistoryEntryView {
	return HistoryEntryView{
		ID:           e.ID,
		URL:          e.URL,
		Text:         e.Text,
		ImageRef:     e.ImageRef,
		ActivityType: e.ActivityType,
		IsProductive: e.IsProductive,
		Score:        e.Score,
		Seconds:      e.Seconds,
		RecordedAt:   e.RecordedAt,
	}
}

func nonNil(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}
