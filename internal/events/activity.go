// Package events defines the payloads published through the outbox.
package events

import "time"

// ActivityRecordedType is the event type of ActivityRecorded.
const ActivityRecordedType = "activity.recorded"

// ActivityRecordedTopic is the Kafka topic carrying ActivityRecorded.
const ActivityRecordedTopic = "activity_recorded"

// ActivityRecorded is emitted once per increment folded into a day aggregate.
type ActivityRecorded struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Day          string    `json:"day"`
	Hour         int       `json:"hour"`
	Seconds      int64     `json:"seconds"`
	IsProductive bool      `json:"is_productive"`
	ActivityType string    `json:"activity_type"`
	URL          string    `json:"url,omitempty"`
	Score        float64   `json:"score"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// PartitionKey keeps a user's events ordered on one partition.
func (e ActivityRecorded) PartitionKey() string {
	return e.UserID
}
