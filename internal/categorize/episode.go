package categorize

import (
	"regexp"
	"strings"
)

var episodePatterns = []*regexp.Regexp{
	// S01E02, S01.E02, s1e2, S01E02E03
	regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s\d{1,2}[ ._-]?e\d{1,3}`),
	// 1x02
	regexp.MustCompile(`(?i)(?:^|[^a-z0-9])\d{1,2}x\d{2,3}(?:[^a-z0-9]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-z0-9])season[ ._-]*\d{1,2}(?:[^0-9]|$)`),
	regexp.MustCompile(`(?i)complete[ ._-]*series`),
	// bare season marker: Show.S02.1080p
	regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s\d{1,2}(?:[^a-z0-9]|$)`),
	// leading episode marker: E01, Ep 01, Episode 01
	regexp.MustCompile(`(?i)^(?:episode|ep|e)[ ._-]*\d{1,3}(?:[^a-z0-9]|$)`),
}

// LooksLikeEpisode reports whether value carries season or episode numbering.
func LooksLikeEpisode(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, pattern := range episodePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
