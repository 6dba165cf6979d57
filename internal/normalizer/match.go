package normalizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContainsKeyword reports whether keyword occurs in text on word boundaries.
// Both arguments are expected in lower case. A trailing plural "s" is tolerated;
// a keyword ending in a non-letter (e.g. "cve-") only needs a boundary on its left.
func ContainsKeyword(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(keyword)
	openEnded := !isWordRune(last)

	offset := 0
	for {
		idx := strings.Index(text[offset:], keyword)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(keyword)

		leftOK := true
		if start > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:start])
			leftOK = !isWordRune(r)
		}
		rightOK := true
		if !openEnded && end < len(text) {
			rightOK = boundaryAt(text, end) || (text[end] == 's' && boundaryAt(text, end+1))
		}
		if leftOK && rightOK {
			return true
		}
		offset = start + 1
	}
}

// countDistinct returns how many distinct keywords occur in text.
func countDistinct(text string, keywords []string) int {
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		if _, dup := seen[kw]; dup {
			continue
		}
		if ContainsKeyword(text, kw) {
			seen[kw] = struct{}{}
		}
	}
	return len(seen)
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if ContainsKeyword(text, kw) {
			return true
		}
	}
	return false
}

func firstMatch[T any](text string, table []KeywordSet[T]) (T, bool) {
	for _, set := range table {
		if matchesAny(text, set.Keywords) {
			return set.Label, true
		}
	}
	var zero T
	return zero, false
}

func boundaryAt(text string, pos int) bool {
	if pos >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[pos:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
