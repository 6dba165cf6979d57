package normalizer

import (
	"strings"
	"unicode/utf8"

	"ThreatScanner/internal/domain"
)

const (
	// MinTitleLength is the shortest relevant title, counted in runes.
	MinTitleLength = 10
	// MinSeverity is the lowest severity kept by the relevance filter.
	MinSeverity = 25
)

// IsRelevant drops short titles, low-severity records and off-topic content.
func IsRelevant(rec domain.ThreatRecord) bool {
	if utf8.RuneCountInString(strings.TrimSpace(rec.Title)) < MinTitleLength {
		return false
	}
	if rec.Severity < MinSeverity {
		return false
	}
	text := strings.ToLower(rec.Title + " " + rec.Summary)
	return !matchesAny(text, OffTopicKeywords)
}
