package domain

import "time"

// SourceKind names the collector responsible for a source.
type SourceKind string

const (
	KindFeed   SourceKind = "feed"
	KindAPI    SourceKind = "api"
	KindHTML   SourceKind = "html"
	KindSocial SourceKind = "social"
)

// Engagement carries forum interaction counters used for severity weighting.
type Engagement struct {
	Score   int
	Replies int
}

// RawItem is a source-specific entry fetched by a collector, discarded after normalization.
type RawItem struct {
	Title        string
	Summary      string
	Link         string
	Published    time.Time
	PublishedRaw string
	SourceName   string
	SourceURL    string
	Kind         SourceKind
	CategoryHint Category
	Priority     int
	// Magnitude is set for seismic payloads only.
	Magnitude  *float64
	Engagement *Engagement
	RegionHint string
	Metadata   map[string]string
}
