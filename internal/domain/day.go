package domain

import "time"

// DayOf returns the calendar day of t in loc, expressed as midnight UTC.
// Day keys compare with Equal and step with AddDate regardless of loc's DST rules.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// HourOf returns the hour of t in loc.
func HourOf(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Hour()
}

// PreviousDay returns the day key immediately before day.
func PreviousDay(day time.Time) time.Time {
	return day.AddDate(0, 0, -1)
}

// TrailingRange returns the first and last day keys of the n-day window ending at today.
func TrailingRange(today time.Time, days int) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	return today.AddDate(0, 0, -(days - 1)), today
}

// FormatDay renders a day key as YYYY-MM-DD.
func FormatDay(day time.Time) string {
	return day.Format(time.DateOnly)
}
