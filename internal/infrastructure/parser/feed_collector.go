package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
)

// FeedCollector reads RSS, Atom and JSON feeds.
type FeedCollector struct {
	base
}

var _ collector.Collector = (*FeedCollector)(nil)

// NewFeedCollector wires the shared fetch options.
func NewFeedCollector(opts Options) *FeedCollector {
	return &FeedCollector{base: newBase(domain.KindFeed, opts)}
}

// Collect fetches every feed source; broken feeds yield no items.
func (f *FeedCollector) Collect(ctx context.Context, sources []collector.Source) []domain.RawItem {
	return f.each(ctx, sources, f.fetchFeed)
}

func (f *FeedCollector) fetchFeed(ctx context.Context, src collector.Source) ([]domain.RawItem, error) {
	body, err := f.get(ctx, src.URL, "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.5")
	if err != nil {
		return nil, err
	}
	return parseFeed(body)
}

func parseFeed(body []byte) ([]domain.RawItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		item := domain.RawItem{
			Title:        entry.Title,
			Summary:      summary,
			Link:         entry.Link,
			PublishedRaw: entry.Published,
		}
		switch {
		case entry.PublishedParsed != nil:
			item.Published = entry.PublishedParsed.UTC()
		case entry.UpdatedParsed != nil:
			item.Published = entry.UpdatedParsed.UTC()
		}
		if item.Link == "" && entry.GUID != "" {
			item.Link = entry.GUID
		}
		if len(entry.Categories) > 0 {
			item.Metadata = map[string]string{"categories": strings.Join(entry.Categories[:min(len(entry.Categories), 5)], ",")}
		}
		items = append(items, item)
	}
	return items, nil
}
