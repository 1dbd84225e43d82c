package sampler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"
	"time"

	"example.com/focusforge/internal/api"
)

// BufferedActivity is a classified sample waiting to be reported to the aggregation endpoint.
type BufferedActivity struct {
	Key          string
	Seconds      int64
	IsProductive bool
	ActivityType string
	URL          string
	Text         string
	ImageBase64  string
	Score        float64
	Timestamp    time.Time
}

// DedupKey hashes the resource, its activity type and the minute bucket of ts.
func DedupKey(url, activityType string, ts time.Time) string {
	minute := ts.UnixMilli() / int64(time.Minute/time.Millisecond)
	sum := sha256.Sum256([]byte(url + "\x00" + activityType + "\x00" + strconv.FormatInt(minute, 10)))
	return hex.EncodeToString(sum[:])
}

// Request converts the activity into the update-time payload.
func (a BufferedActivity) Request() api.UpdateTimeRequest {
	seconds, productive, score := a.Seconds, a.IsProductive, a.Score
	return api.UpdateTimeRequest{
		Seconds:      &seconds,
		IsProductive: &productive,
		ActivityType: a.ActivityType,
		URL:          a.URL,
		Text:         a.Text,
		ImageBase64:  a.ImageBase64,
		Score:        &score,
	}
}

type bufferEntry struct {
	activity  BufferedActivity
	submitted bool
}

// Buffer collapses samples sharing a dedup key. Each key is reported at most once;
// a newer sample for an already reported key replaces the stored value without being resent.
type Buffer struct {
	mu        sync.Mutex
	entries   map[string]*bufferEntry
	retention time.Duration
	now       func() time.Time
}

// NewBuffer returns an empty buffer that forgets entries older than retention.
func NewBuffer(retention time.Duration, now func() time.Time) *Buffer {
	if now == nil {
		now = time.Now
	}
	return &Buffer{entries: make(map[string]*bufferEntry), retention: retention, now: now}
}

// Fold inserts a if its key is new, or replaces the stored value when a is newer.
// It reports whether the buffer changed.
func (b *Buffer) Fold(a BufferedActivity) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.entries[a.Key]
	if !ok {
		b.entries[a.Key] = &bufferEntry{activity: a}
		return true
	}
	if !a.Timestamp.After(existing.activity.Timestamp) {
		return false
	}
	existing.activity = a
	return true
}

// Pending returns the entries not yet reported.
func (b *Buffer) Pending() []BufferedActivity {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]BufferedActivity, 0, len(b.entries))
	for _, e := range b.entries {
		if !e.submitted {
			out = append(out, e.activity)
		}
	}
	return out
}

// Flush submits every pending entry, marks the successful ones as reported and then evicts
// entries older than the retention window, measured after submission. Failed entries stay
// pending for the next flush.
func (b *Buffer) Flush(ctx context.Context, submit func(context.Context, BufferedActivity) error) (int, error) {
	var (
		submitted int
		errs      []error
	)
	for _, activity := range b.Pending() {
		if err := submit(ctx, activity); err != nil {
			errs = append(errs, err)
			continue
		}
		b.markSubmitted(activity)
		submitted++
	}
	b.evict()
	return submitted, errors.Join(errs...)
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
}

func (b *Buffer) markSubmitted(a BufferedActivity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[a.Key]; ok {
		e.submitted = true
	}
}

func (b *Buffer) evict() {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.now().Add(-b.retention)
	for key, e := range b.entries {
		if e.activity.Timestamp.Before(cutoff) {
			delete(b.entries, key)
		}
	}
}
