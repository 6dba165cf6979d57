// Package normalizer turns raw source items into canonical threat records.
// Everything here is pure: no I/O, no clock reads, no shared mutable state.
package normalizer

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"ThreatScanner/internal/domain"
)

// ErrEmptyItem is returned for raw items carrying neither title, summary nor link.
var ErrEmptyItem = errors.New("raw item has no title, summary or link")

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("threatscanner/records"))

// Normalize converts one raw item into a ThreatRecord. hint is the collector-supplied
// category used when no keyword table matches; now stamps collection time.
func Normalize(item domain.RawItem, hint domain.Category, now time.Time) (domain.ThreatRecord, error) {
	title := Truncate(CleanText(item.Title), MaxTitleLength)
	summary := Truncate(CleanText(item.Summary), MaxSummaryLength)
	link := strings.TrimSpace(item.Link)
	if title == "" && summary == "" && link == "" {
		return domain.ThreatRecord{}, ErrEmptyItem
	}
	if title == "" {
		title = UntitledTitle
	}

	text := strings.ToLower(title + " " + summary)

	category, detected := DetectCategory(text)
	if !detected {
		category = fallbackCategory(hint, item.CategoryHint)
	}

	severity := KeywordSeverity(text)
	if item.Magnitude != nil {
		severity = MagnitudeSeverity(*item.Magnitude)
	}
	if item.Engagement != nil {
		severity = clamp(severity + EngagementBonus(*item.Engagement))
	}

	timestamp, parsed := resolveTimestamp(item)
	if !parsed {
		timestamp = now.UTC()
	}

	sources := buildSources(item)
	credible := false
	for _, src := range sources {
		if IsCredibleSource(src) {
			credible = true
			break
		}
	}

	return domain.ThreatRecord{
		ID:          RecordID(item, title),
		Title:       title,
		Summary:     summary,
		Category:    category,
		Severity:    severity,
		Confidence:  confidence(detected, parsed, item.Magnitude != nil, credible),
		Regions:     []string{DetectRegion(text, item.RegionHint)},
		Tags:        DetectTags(text),
		Sources:     sources,
		Timestamp:   timestamp,
		CollectedAt: now.UTC(),
		Status:      domain.StatusActive,
	}, nil
}

// DetectCategory scans lowercase text against CategoryOrder.
func DetectCategory(text string) (domain.Category, bool) {
	return firstMatch(text, CategoryOrder)
}

// KeywordSeverity applies the base score plus the weighted tier matches, clamped to [0,100].
func KeywordSeverity(text string) int {
	score := BaseSeverity
	for _, tier := range SeverityTiers {
		score += tier.Weight * countDistinct(text, tier.Keywords)
	}
	return clamp(score)
}

// MagnitudeSeverity maps a seismic magnitude through MagnitudeSteps.
func MagnitudeSeverity(magnitude float64) int {
	for _, step := range MagnitudeSteps {
		if magnitude >= step.Min {
			return step.Severity
		}
	}
	return MagnitudeFloorSeverity
}

// EngagementBonus is the extra severity for highly engaged forum posts.
func EngagementBonus(e domain.Engagement) int {
	bonus := 0
	if e.Score > EngagementScoreThreshold {
		bonus += EngagementScoreBonus
	}
	if e.Replies > EngagementRepliesThreshold {
		bonus += EngagementRepliesBonus
	}
	return bonus
}

// DetectRegion returns the first matching region, then the hint, then Global.
func DetectRegion(text, hint string) string {
	if region, ok := firstMatch(text, RegionOrder); ok {
		return region
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		if region, ok := firstMatch(strings.ToLower(hint), RegionOrder); ok {
			return region
		}
	}
	return domain.DefaultRegion
}

// DetectTags returns every matching tag in sorted order, or the default tag.
func DetectTags(text string) []string {
	var tags []string
	for _, set := range TagTable {
		if matchesAny(text, set.Keywords) {
			tags = append(tags, set.Label)
		}
	}
	if len(tags) == 0 {
		return []string{DefaultTag}
	}
	sort.Strings(tags)
	return tags
}

// RecordID derives a stable identifier from the item link, or from source and title.
func RecordID(item domain.RawItem, cleanTitle string) string {
	key := strings.TrimSpace(item.Link)
	if key == "" {
		key = string(item.Kind) + "|" + item.SourceName + "|" + strings.ToLower(cleanTitle)
	}
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

func fallbackCategory(hints ...domain.Category) domain.Category {
	for _, h := range hints {
		if h.Valid() {
			return h
		}
	}
	return domain.CategoryGeneral
}

func resolveTimestamp(item domain.RawItem) (time.Time, bool) {
	if !item.Published.IsZero() {
		return item.Published.UTC(), true
	}
	return ParseTimestamp(item.PublishedRaw)
}

func buildSources(item domain.RawItem) []string {
	var sources []string
	seen := map[string]struct{}{}
	for _, candidate := range []string{item.Link, item.SourceURL} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		sources = append(sources, candidate)
	}
	if len(sources) == 0 && item.SourceName != "" {
		sources = append(sources, "source:"+item.SourceName)
	}
	return sources
}

func confidence(detected, dated, instrumented, credible bool) int {
	score := 50
	if detected {
		score += 10
	}
	if dated {
		score += 10
	}
	if instrumented {
		score += 20
	}
	if credible {
		score += 10
	}
	return clamp(score)
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
