package normalizer

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ThreatScanner/internal/domain"
)

var fixedNow = time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)

func TestNormalizeRansomwareOutbreak(t *testing.T) {
	t.Parallel()

	rec, err := Normalize(domain.RawItem{
		Title: "Major ransomware outbreak cripples hospital network",
		Link:  "https://example.org/story/1",
		Kind:  domain.KindFeed,
	}, domain.CategoryNews, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, domain.CategoryCyber, rec.Category)
	assert.GreaterOrEqual(t, rec.Severity, 45)
	assert.Equal(t, BaseSeverity+25+15, rec.Severity)
	assert.Contains(t, rec.Tags, "ransomware")
	assert.Contains(t, rec.Tags, "outbreak")
	assert.Equal(t, []string{domain.DefaultRegion}, rec.Regions)
	assert.Equal(t, domain.StatusActive, rec.Status)
	assert.Equal(t, fixedNow, rec.CollectedAt)
}

func TestNormalizeMagnitudeOverridesText(t *testing.T) {
	t.Parallel()

	for _, title := range []string{
		"M 7.2 - 40 km SW of Somewhere",
		"Catastrophic nuclear meltdown pandemic ransomware invasion",
		"Quiet afternoon",
	} {
		mag := 7.2
		rec, err := Normalize(domain.RawItem{Title: title, Magnitude: &mag}, domain.CategoryNatural, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, 90, rec.Severity, title)
	}
}

func TestMagnitudeSeverity(t *testing.T) {
	t.Parallel()

	cases := map[float64]int{9.1: 90, 7.0: 90, 6.5: 75, 6.0: 75, 5.2: 60, 4.0: 45, 3.9: 30, 0: 30}
	for mag, want := range cases {
		assert.Equal(t, want, MagnitudeSeverity(mag), "magnitude %.1f", mag)
	}
}

func TestNormalizeEngagementBonus(t *testing.T) {
	t.Parallel()

	item := domain.RawItem{
		Title:      "Hackers claim breach of national water utility",
		Kind:       domain.KindSocial,
		Engagement: &domain.Engagement{Score: 4200, Replies: 350},
	}
	rec, err := Normalize(item, domain.CategoryCyber, fixedNow)
	require.NoError(t, err)

	base := KeywordSeverity(strings.ToLower(item.Title))
	assert.Equal(t, base+EngagementScoreBonus+EngagementRepliesBonus, rec.Severity)

	item.Engagement = &domain.Engagement{Score: 10, Replies: 2}
	rec, err = Normalize(item, domain.CategoryCyber, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, base, rec.Severity)
}

func TestNormalizeSeverityClamped(t *testing.T) {
	t.Parallel()

	rec, err := Normalize(domain.RawItem{
		Title:      "Catastrophic nuclear meltdown triggers pandemic, invasion and tsunami",
		Summary:    "Genocide, martial law, state of emergency, mass casualty ransomware zero-day",
		Engagement: &domain.Engagement{Score: 99999, Replies: 9999},
	}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Severity)
}

func TestNormalizeCategoryFallback(t *testing.T) {
	t.Parallel()

	rec, err := Normalize(domain.RawItem{Title: "Unusual readings reported near the coast"}, domain.CategoryIntelligence, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryIntelligence, rec.Category)

	rec, err = Normalize(domain.RawItem{Title: "Unusual readings reported near the coast", CategoryHint: domain.CategoryNatural}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryNatural, rec.Category)

	rec, err = Normalize(domain.RawItem{Title: "Unusual readings reported near the coast"}, "bogus", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryGeneral, rec.Category)
}

func TestNormalizeCleansAndTruncates(t *testing.T) {
	t.Parallel()

	rec, err := Normalize(domain.RawItem{
		Title:   "  <b>Flood</b>\n\n warning &amp; evacuation   ",
		Summary: "<p>" + strings.Repeat("water ", 200) + "</p>",
	}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "Flood warning & evacuation", rec.Title)
	assert.LessOrEqual(t, len([]rune(rec.Summary)), MaxSummaryLength)
	assert.NotContains(t, rec.Summary, "<p>")

	rec, err = Normalize(domain.RawItem{Title: strings.Repeat("a", 450), Summary: "x"}, "", fixedNow)
	require.NoError(t, err)
	assert.Len(t, []rune(rec.Title), MaxTitleLength)
}

func TestNormalizePlaceholderTitleAndEmpty(t *testing.T) {
	t.Parallel()

	rec, err := Normalize(domain.RawItem{Summary: "Earthquake shakes the region"}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, UntitledTitle, rec.Title)

	_, err = Normalize(domain.RawItem{Title: "   ", Summary: "<br/>"}, "", fixedNow)
	require.ErrorIs(t, err, ErrEmptyItem)
}

func TestNormalizeTimestamp(t *testing.T) {
	t.Parallel()

	rec, err := Normalize(domain.RawItem{Title: "Drought deepens", PublishedRaw: "Mon, 02 Mar 2026 08:30:00 +0000"}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 2, 8, 30, 0, 0, time.UTC), rec.Timestamp)

	rec, err = Normalize(domain.RawItem{Title: "Drought deepens", PublishedRaw: "20260301T101500Z"}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 1, 10, 15, 0, 0, time.UTC), rec.Timestamp)

	rec, err = Normalize(domain.RawItem{Title: "Drought deepens", PublishedRaw: "sometime last week"}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, rec.Timestamp)
}

func TestNormalizeRegionAndTags(t *testing.T) {
	t.Parallel()

	rec, err := Normalize(domain.RawItem{Title: "Missile strikes hit Gaza as Ukraine shelling continues"}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"Middle East"}, rec.Regions)
	assert.Equal(t, domain.CategoryConflict, rec.Category)
	assert.Equal(t, []string{"conflict"}, rec.Tags)

	rec, err = Normalize(domain.RawItem{Title: "Strong shaking felt", RegionHint: "10 km N of Tokyo, Japan"}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"Asia"}, rec.Regions)
	assert.Equal(t, []string{DefaultTag}, rec.Tags)
}

func TestNormalizeSourcesAndID(t *testing.T) {
	t.Parallel()

	item := domain.RawItem{
		Title:     "CISA warns of exploited zero-day vulnerability",
		Link:      "https://www.cisa.gov/news/1",
		SourceURL: "https://www.cisa.gov/feed.xml",
	}
	a, err := Normalize(item, "", fixedNow)
	require.NoError(t, err)
	b, err := Normalize(item, "", fixedNow.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, []string{item.Link, item.SourceURL}, a.Sources)
	assert.Equal(t, 50+10+10, a.Confidence)

	other, err := Normalize(domain.RawItem{Title: item.Title, SourceName: "cisa"}, "", fixedNow)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, other.ID)
	assert.Equal(t, []string{"source:cisa"}, other.Sources)
}

func TestContainsKeyword(t *testing.T) {
	t.Parallel()

	assert.True(t, ContainsKeyword("the war continues", "war"))
	assert.True(t, ContainsKeyword("two wars continue", "war"))
	assert.False(t, ContainsKeyword("new software warning", "war"))
	assert.True(t, ContainsKeyword("patch cve-2026-1234 now", "cve-"))
	assert.True(t, ContainsKeyword("the u.s. said", "u.s."))
	assert.False(t, ContainsKeyword("maintain", "ai"))
	assert.True(t, ContainsKeyword("ai regulation", "ai"))
}

func TestIsCredibleSource(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCredibleSource("https://www.reuters.com/world/"))
	assert.True(t, IsCredibleSource("https://earthquake.usgs.gov/feed"))
	assert.False(t, IsCredibleSource("https://notreuters.com/x"))
	assert.False(t, IsCredibleSource("source:reddit"))
}

func TestCommunityCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.CategoryCyber, CommunityCategory("r/netsec"))
	assert.Equal(t, domain.CategoryConflict, CommunityCategory("WorldNews"))
	assert.Equal(t, domain.CategoryGeneral, CommunityCategory("aww"))
}

func TestNormalizeProperties(t *testing.T) {
	vocab := []string{
		"ransomware", "outbreak", "earthquake", "war", "inflation", "ai", "flood", "the",
		"<b>", "&amp;", "catastrophic", "warning", "minor", "gaza", "", "sports", "breach",
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("severity in range and category in enum", prop.ForAll(
		func(words []int, withMag bool, mag float64, score, replies int) bool {
			parts := make([]string, 0, len(words))
			for _, w := range words {
				parts = append(parts, vocab[w])
			}
			item := domain.RawItem{
				Title:      strings.Join(parts, " "),
				Summary:    strings.Join(parts, " "),
				Link:       "https://example.org/p",
				Engagement: &domain.Engagement{Score: score, Replies: replies},
			}
			if withMag {
				item.Magnitude = &mag
			}
			rec, err := Normalize(item, "", fixedNow)
			if err != nil {
				return false
			}
			return rec.Severity >= 0 && rec.Severity <= 100 &&
				rec.Category.Valid() &&
				len(rec.Regions) > 0 &&
				rec.Confidence >= 0 && rec.Confidence <= 100
		},
		gen.SliceOf(gen.IntRange(0, len(vocab)-1)),
		gen.Bool(),
		gen.Float64Range(-2, 10),
		gen.IntRange(0, 50000),
		gen.IntRange(0, 5000),
	))

	properties.TestingRun(t)
}
