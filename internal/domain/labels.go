package domain

import "strings"

// Label is the binary productivity verdict attached to every classified sample.
type Label string

const (
	LabelProductive   Label = "productive"
	LabelUnproductive Label = "unproductive"
)

// Valid reports whether the label is one of the two known verdicts.
func (l Label) Valid() bool {
	return l == LabelProductive || l == LabelUnproductive
}

// ParseLabel maps a free-form classifier label to a Label.
func ParseLabel(value string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(LabelProductive):
		return LabelProductive, true
	case string(LabelUnproductive):
		return LabelUnproductive, true
	}
	return "", false
}

// Activity labels produced by the zero-shot classifier and the domain rule table.
const (
	ActivityCoding        = "Coding"
	ActivityStudying      = "Studying"
	ActivityMeeting       = "Meeting"
	ActivityResearch      = "Research"
	ActivityWriting       = "Writing"
	ActivityCooking       = "Cooking"
	ActivityCommunication = "Communication"
	ActivityNews          = "News"
	ActivityShopping      = "Shopping"
	ActivitySocialMedia   = "Social Media"
	ActivityGaming        = "Gaming"
	ActivityEntertainment = "Entertainment"

	// ActivityUnknown is the sentinel used when no activity classifier produced a label.
	ActivityUnknown = "Unknown"
)

// ActivityLabels is the closed candidate set offered to the zero-shot classifier.
var ActivityLabels = []string{
	ActivityCoding,
	ActivityStudying,
	ActivityMeeting,
	ActivityResearch,
	ActivityWriting,
	ActivityCooking,
	ActivityCommunication,
	ActivityNews,
	ActivityShopping,
	ActivitySocialMedia,
	ActivityGaming,
	ActivityEntertainment,
}

var activityIndex = func() map[string]string {
	out := make(map[string]string, len(ActivityLabels))
	for _, label := range ActivityLabels {
		out[strings.ToLower(label)] = label
	}
	return out
}()

// CanonicalActivity returns the canonical spelling of a known activity label.
// Unknown or empty values resolve to ActivityUnknown.
func CanonicalActivity(value string) string {
	if label, ok := activityIndex[strings.ToLower(strings.TrimSpace(value))]; ok {
		return label
	}
	return ActivityUnknown
}

// IsKnownActivity reports whether value names a label from ActivityLabels.
func IsKnownActivity(value string) bool {
	_, ok := activityIndex[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// ResolveActivityType applies the fallback used before anything is persisted:
// an empty or Unknown activity type becomes Studying.
func ResolveActivityType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, ActivityUnknown) {
		return ActivityStudying
	}
	return value
}
