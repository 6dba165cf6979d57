package normalizer

import (
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Field bounds applied by Normalize. UntitledTitle replaces an empty title.
const (
	MaxTitleLength   = 200
	MaxSummaryLength = 500
	UntitledTitle    = "Untitled threat report"
)

// CleanText strips markup, decodes entities and collapses whitespace.
func CleanText(value string) string {
	if strings.ContainsAny(value, "<&") {
		value = stripMarkup(value)
	}
	return strings.Join(strings.Fields(value), " ")
}

func stripMarkup(value string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return html.UnescapeString(value)
	}
	// Block elements would otherwise glue adjacent words together.
	doc.Find("br, p, div, li, td, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	doc.Find("script, style").Remove()
	return doc.Text()
}

// Truncate cuts value to at most limit runes.
func Truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:limit]))
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"20060102T150405Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseTimestamp tries the known layouts and unix seconds; ok is false when nothing parsed.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}
