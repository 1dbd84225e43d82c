package sampler

import (
	"regexp"
	"strings"

	"example.com/focusforge/internal/domain"
)

// MaxSampleText bounds the text sent for classification.
const MaxSampleText = 5000

var noisePhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)paused due to problems with your network`),
	regexp.MustCompile(`(?i)connection issue`),
}

var hostPrefixes = []struct {
	host   string
	prefix string
}{
	{host: "youtube.com", prefix: "Potential study content: "},
	{host: "meet.google.com", prefix: "Meeting activity: "},
	{host: "chess.com", prefix: "Gaming activity: "},
}

// Preprocess normalises extracted page text before classification: whitespace is collapsed,
// the text is capped, player/network noise is removed and a host hint is prepended.
func Preprocess(text, hostname string) string {
	text = domain.Truncate(collapse(text), MaxSampleText)
	for _, re := range noisePhrases {
		text = re.ReplaceAllString(text, "")
	}
	text = collapse(text)

	for _, hp := range hostPrefixes {
		if strings.Contains(hostname, hp.host) {
			return hp.prefix + text
		}
	}
	return text
}

// sampleText picks the first non-empty candidate of visible text, title and hostname.
func sampleText(visible, title, hostname string) string {
	for _, candidate := range []string{visible, title, hostname} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
