// Package domain defines the shared types and rules of the productivity pipeline.
package domain

import (
	"math"
	"time"
)

// DataType names the signal a classification was derived from.
type DataType string

const (
	DataTypeText  DataType = "text"
	DataTypeImage DataType = "image"
)

// MaxStoredText bounds the text kept alongside a classification or history entry.
const MaxStoredText = 2000

// HistoryCapacity is the number of history entries retained per day aggregate.
const HistoryCapacity = 100

// ClassificationInput is the payload accepted by the fusion service.
type ClassificationInput struct {
	Text        string
	ImageBase64 string
	URL         string
}

// Empty reports whether no signal was supplied at all.
func (in ClassificationInput) Empty() bool {
	return in.Text == "" && in.ImageBase64 == "" && in.URL == ""
}

// ClassificationResult is the fused decision for one sample.
type ClassificationResult struct {
	Label        Label
	Score        float64
	ActivityType string
	StoredData   string
	DataType     DataType
}

// Productive reports whether the result carries the productive label.
func (r ClassificationResult) Productive() bool {
	return r.Label == LabelProductive
}

// HourlyEntry is one append-only slice of time recorded against an hour of the day.
type HourlyEntry struct {
	Hour             int
	ProductiveTime   int64
	UnproductiveTime int64
}

// HistoryEntry is a classified sample retained in a day's bounded history.
type HistoryEntry struct {
	ID           string
	URL          string
	Text         string
	ImageRef     string
	ActivityType string
	IsProductive bool
	Score        float64
	Seconds      int64
	RecordedAt   time.Time
}

// DayAggregate accumulates one user's activity for one calendar day.
type DayAggregate struct {
	UserID           string
	Date             time.Time
	ProductiveTime   int64
	UnproductiveTime int64
	ActivityTime     map[string]int64
	HourlyData       []HourlyEntry
	History          []HistoryEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TotalTime returns the tracked seconds for the day.
func (d DayAggregate) TotalTime() int64 {
	return d.ProductiveTime + d.UnproductiveTime
}

// RecordInput carries one aggregation update.
type RecordInput struct {
	UserID       string
	Date         time.Time
	Hour         int
	Seconds      int64
	IsProductive bool
	ActivityType string
	History      HistoryEntry
	Screenshot   *Screenshot
}

// Screenshot is a captured page image kept for the dashboard carousel.
type Screenshot struct {
	ID          string
	UserID      string
	Date        time.Time
	URL         string
	ImageBase64 string
	CapturedAt  time.Time
}

// HourBucket is the per-hour sum used by hourly breakdowns.
type HourBucket struct {
	Hour             int
	ProductiveTime   int64
	UnproductiveTime int64
}

// Score computes the 0-100 productivity score. The +1 keeps an empty day at zero.
func Score(productive, unproductive int64) int {
	return int(math.Round(float64(productive) / float64(productive+unproductive+1) * 100))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Cursor models the pagination token for history listings.
type Cursor struct {
	RecordedAt time.Time
	ID         string
}
