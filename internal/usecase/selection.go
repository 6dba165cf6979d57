package usecase

import (
	"sort"
	"strings"

	"ThreatScanner/internal/domain"
)

// Select keeps complete records and returns at most n of them ordered by severity desc,
// timestamp desc, id asc.
func Select(records []domain.ThreatRecord, n int) []domain.ThreatRecord {
	if n <= 0 {
		return nil
	}

	complete := make([]domain.ThreatRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Summary) == "" {
			continue
		}
		complete = append(complete, rec)
	}

	sort.Slice(complete, func(i, j int) bool {
		a, b := complete[i], complete[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})

	if len(complete) > n {
		complete = complete[:n]
	}
	return complete
}

// Dedupe collapses records sharing an id. The higher severity wins; ties go to the higher
// confidence, then the lexically smaller title. Output keeps first-seen order.
func Dedupe(records []domain.ThreatRecord) []domain.ThreatRecord {
	index := make(map[string]int, len(records))
	out := make([]domain.ThreatRecord, 0, len(records))
	for _, rec := range records {
		pos, seen := index[rec.ID]
		if !seen {
			index[rec.ID] = len(out)
			out = append(out, rec)
			continue
		}
		if preferred(rec, out[pos]) {
			out[pos] = rec
		}
	}
	return out
}

func preferred(candidate, current domain.ThreatRecord) bool {
	if candidate.Severity != current.Severity {
		return candidate.Severity > current.Severity
	}
	if candidate.Confidence != current.Confidence {
		return candidate.Confidence > current.Confidence
	}
	return candidate.Title < current.Title
}
