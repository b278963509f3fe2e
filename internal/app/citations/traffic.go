package citations

import "regexp"

// TrafficClassifier flags answers that should be emphasised as heavy traffic in the UI.
type TrafficClassifier func(text string) bool

var heavyTrafficPattern = regexp.MustCompile(
	`(?i)\b(heavy traffic|congestion|congested|gridlock|delays?|rush hour|overcrowded|(?:very|extremely|severely) crowded)\b`,
)

// DefaultTrafficClassifier matches a fixed keyword set, case-insensitively.
func DefaultTrafficClassifier(text string) bool {
	return heavyTrafficPattern.MatchString(text)
}
