package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
)

// Supported structured-API response shapes.
const (
	FormatUSGS  = "usgs"
	FormatEONET = "eonet"
	FormatGDELT = "gdelt"
)

// APICollector normalizes source-specific JSON payloads into raw items.
type APICollector struct {
	base
	decoders map[string]apiDecoder
}

type apiDecoder func(body []byte) ([]domain.RawItem, error)

var _ collector.Collector = (*APICollector)(nil)

// NewAPICollector registers the known payload decoders.
func NewAPICollector(opts Options) *APICollector {
	return &APICollector{
		base: newBase(domain.KindAPI, opts),
		decoders: map[string]apiDecoder{
			FormatUSGS:  decodeUSGS,
			FormatEONET: decodeEONET,
			FormatGDELT: decodeGDELT,
		},
	}
}

// Collect fetches every API source; unknown formats are treated as misconfiguration.
func (a *APICollector) Collect(ctx context.Context, sources []collector.Source) []domain.RawItem {
	return a.each(ctx, sources, a.fetchAPI)
}

func (a *APICollector) fetchAPI(ctx context.Context, src collector.Source) ([]domain.RawItem, error) {
	decode, ok := a.decoders[strings.ToLower(src.Format)]
	if !ok {
		return nil, fmt.Errorf("unsupported api format %q", src.Format)
	}
	body, err := a.get(ctx, src.URL, "application/json, application/geo+json")
	if err != nil {
		return nil, err
	}
	return decode(body)
}

type usgsResponse struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Mag     *float64 `json:"mag"`
			Place   string   `json:"place"`
			Time    int64    `json:"time"`
			URL     string   `json:"url"`
			Title   string   `json:"title"`
			Alert   string   `json:"alert"`
			Tsunami int      `json:"tsunami"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

func decodeUSGS(body []byte) ([]domain.RawItem, error) {
	var payload usgsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode usgs payload: %w", err)
	}

	items := make([]domain.RawItem, 0, len(payload.Features))
	for _, f := range payload.Features {
		p := f.Properties
		if p.Mag == nil {
			continue
		}
		mag := *p.Mag
		title := p.Title
		if title == "" {
			title = fmt.Sprintf("M %.1f - %s", mag, p.Place)
		}
		summary := fmt.Sprintf("Magnitude %.1f earthquake %s.", mag, p.Place)
		if p.Tsunami == 1 {
			summary += " Tsunami evaluation issued."
		}
		meta := map[string]string{"eventId": f.ID}
		if p.Alert != "" {
			meta["alert"] = p.Alert
		}
		if c := f.Geometry.Coordinates; len(c) >= 3 {
			meta["depthKm"] = fmt.Sprintf("%.1f", c[2])
		}
		item := domain.RawItem{
			Title:        title,
			Summary:      summary,
			Link:         p.URL,
			CategoryHint: domain.CategoryNatural,
			Magnitude:    &mag,
			RegionHint:   p.Place,
			Metadata:     meta,
		}
		if p.Time > 0 {
			item.Published = time.UnixMilli(p.Time).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

type eonetResponse struct {
	Events []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Link        string `json:"link"`
		Categories  []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"categories"`
		Sources []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"sources"`
		Geometry []struct {
			Date string `json:"date"`
		} `json:"geometry"`
	} `json:"events"`
}

var eonetCategories = map[string]domain.Category{
	"wildfires":    domain.CategoryClimate,
	"floods":       domain.CategoryClimate,
	"drought":      domain.CategoryClimate,
	"tempextremes": domain.CategoryClimate,
	"seaLakeIce":   domain.CategoryClimate,
	"severeStorms": domain.CategoryNatural,
	"volcanoes":    domain.CategoryNatural,
	"earthquakes":  domain.CategoryNatural,
	"landslides":   domain.CategoryNatural,
}

func decodeEONET(body []byte) ([]domain.RawItem, error) {
	var payload eonetResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode eonet payload: %w", err)
	}

	items := make([]domain.RawItem, 0, len(payload.Events))
	for _, ev := range payload.Events {
		hint := domain.CategoryNatural
		var kinds []string
		for _, c := range ev.Categories {
			kinds = append(kinds, c.Title)
			if mapped, ok := eonetCategories[c.ID]; ok {
				hint = mapped
			}
		}

		link := ev.Link
		var trackers []string
		for _, s := range ev.Sources {
			trackers = append(trackers, s.ID)
			if s.URL != "" && link == ev.Link {
				link = s.URL
			}
		}

		summary := ev.Description
		if summary == "" {
			summary = fmt.Sprintf("%s event tracked by %s.", strings.Join(kinds, ", "), strings.Join(trackers, ", "))
		}

		item := domain.RawItem{
			Title:        ev.Title,
			Summary:      summary,
			Link:         link,
			CategoryHint: hint,
			Metadata:     map[string]string{"eventId": ev.ID},
		}
		// geometry is chronological; the last point is the latest observation
		if n := len(ev.Geometry); n > 0 {
			item.PublishedRaw = ev.Geometry[n-1].Date
			if t, err := time.Parse(time.RFC3339, item.PublishedRaw); err == nil {
				item.Published = t.UTC()
			}
		}
		items = append(items, item)
	}
	return items, nil
}

type gdeltResponse struct {
	Articles []struct {
		URL           string `json:"url"`
		Title         string `json:"title"`
		SeenDate      string `json:"seendate"`
		Domain        string `json:"domain"`
		Language      string `json:"language"`
		SourceCountry string `json:"sourcecountry"`
	} `json:"articles"`
}

func decodeGDELT(body []byte) ([]domain.RawItem, error) {
	var payload gdeltResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode gdelt payload: %w", err)
	}

	items := make([]domain.RawItem, 0, len(payload.Articles))
	for _, art := range payload.Articles {
		summary := fmt.Sprintf("%s (reported by %s)", art.Title, art.Domain)
		if art.SourceCountry != "" {
			summary = fmt.Sprintf("%s (reported by %s, %s)", art.Title, art.Domain, art.SourceCountry)
		}
		item := domain.RawItem{
			Title:        art.Title,
			Summary:      summary,
			Link:         art.URL,
			PublishedRaw: art.SeenDate,
			RegionHint:   art.SourceCountry,
			Metadata:     map[string]string{"domain": art.Domain, "language": art.Language},
		}
		if t, err := time.Parse("20060102T150405Z", art.SeenDate); err == nil {
			item.Published = t.UTC()
		}
		items = append(items, item)
	}
	return items, nil
}
