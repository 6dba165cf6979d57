package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/normalizer"
)

const socialBaseURL = "https://www.reddit.com"

// SocialCollector reads community listings from a reddit-compatible JSON endpoint.
type SocialCollector struct {
	base
	baseURL string
}

var _ collector.Collector = (*SocialCollector)(nil)

// NewSocialCollector wires fetch options; listings are read from the public read-only endpoint.
func NewSocialCollector(opts Options) *SocialCollector {
	return &SocialCollector{base: newBase(domain.KindSocial, opts), baseURL: socialBaseURL}
}

// Collect reads the newest posts of every configured community.
func (s *SocialCollector) Collect(ctx context.Context, sources []collector.Source) []domain.RawItem {
	return s.each(ctx, sources, s.fetchCommunity)
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Permalink   string  `json:"permalink"`
				URL         string  `json:"url"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				Subreddit   string  `json:"subreddit"`
				Stickied    bool    `json:"stickied"`
				Over18      bool    `json:"over_18"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (s *SocialCollector) fetchCommunity(ctx context.Context, src collector.Source) ([]domain.RawItem, error) {
	community := strings.TrimPrefix(strings.TrimSpace(src.Community), "r/")
	if community == "" {
		community = strings.TrimPrefix(strings.TrimSpace(src.Name), "r/")
	}
	if community == "" {
		return nil, fmt.Errorf("social source %q has no community", src.Name)
	}

	endpoint, err := s.listingURL(src, community)
	if err != nil {
		return nil, err
	}
	body, err := s.get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeListing(body, s.siteBase(src), community, src.Category)
}

func (s *SocialCollector) listingURL(src collector.Source, community string) (string, error) {
	raw := src.URL
	if raw == "" {
		raw = fmt.Sprintf("%s/r/%s/new.json", s.baseURL, url.PathEscape(community))
	}
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		return "", fmt.Errorf("invalid listing url %q", raw)
	}
	q := parsed.Query()
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(s.limitFor(src)))
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func (s *SocialCollector) siteBase(src collector.Source) string {
	if src.URL == "" {
		return s.baseURL
	}
	if u, err := url.Parse(src.URL); err == nil && u.IsAbs() {
		return u.Scheme + "://" + u.Host
	}
	return s.baseURL
}

func decodeListing(body []byte, site, community string, fallback domain.Category) ([]domain.RawItem, error) {
	var payload listing
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	hint := normalizer.CommunityCategory(community)
	if hint == domain.CategoryGeneral && fallback.Valid() {
		hint = fallback
	}

	items := make([]domain.RawItem, 0, len(payload.Data.Children))
	for _, child := range payload.Data.Children {
		post := child.Data
		if post.Stickied || post.Over18 {
			continue
		}

		link := post.URL
		if post.Permalink != "" {
			link = strings.TrimSuffix(site, "/") + post.Permalink
		}
		summary := post.Selftext
		if summary == "" && post.URL != "" && post.URL != link {
			summary = fmt.Sprintf("Link shared in r/%s: %s", community, post.URL)
		}

		item := domain.RawItem{
			Title:        post.Title,
			Summary:      summary,
			Link:         link,
			CategoryHint: hint,
			SourceName:   "r/" + community,
			Engagement:   &domain.Engagement{Score: post.Score, Replies: post.NumComments},
			Metadata: map[string]string{
				"community": community,
				"score":     strconv.Itoa(post.Score),
				"comments":  strconv.Itoa(post.NumComments),
			},
		}
		if post.CreatedUTC > 0 {
			item.Published = time.Unix(int64(post.CreatedUTC), 0).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}
