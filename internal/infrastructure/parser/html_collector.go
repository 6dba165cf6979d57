package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
)

var errMissingSelector = errors.New("html source requires item and title selectors")

// Renderer loads a page in a browser and returns the rendered document.
type Renderer interface {
	Render(ctx context.Context, pageURL, userAgent string) ([]byte, error)
}

// HTMLCollector scrapes pages using source-declared CSS selectors.
type HTMLCollector struct {
	base
	renderer Renderer
}

var _ collector.Collector = (*HTMLCollector)(nil)

// NewHTMLCollector wires fetch options; renderer serves sources with render enabled and may be nil.
func NewHTMLCollector(opts Options, renderer Renderer) *HTMLCollector {
	return &HTMLCollector{base: newBase(domain.KindHTML, opts), renderer: renderer}
}

// Collect scrapes every HTML source.
func (h *HTMLCollector) Collect(ctx context.Context, sources []collector.Source) []domain.RawItem {
	return h.each(ctx, sources, h.scrape)
}

func (h *HTMLCollector) scrape(ctx context.Context, src collector.Source) ([]domain.RawItem, error) {
	if src.Selectors.Item == "" || src.Selectors.Title == "" {
		return nil, errMissingSelector
	}
	pageURL, err := url.Parse(src.URL)
	if err != nil || !pageURL.IsAbs() {
		return nil, fmt.Errorf("invalid page url %q", src.URL)
	}

	body, err := h.fetchPage(ctx, src)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return extractItems(doc, pageURL, src.Selectors), nil
}

func (h *HTMLCollector) fetchPage(ctx context.Context, src collector.Source) ([]byte, error) {
	if src.Render {
		if h.renderer == nil {
			return nil, errors.New("source requires rendering but no renderer is configured")
		}
		return h.renderer.Render(ctx, src.URL, h.userAgent)
	}
	return h.get(ctx, src.URL, "text/html,application/xhtml+xml")
}

func extractItems(doc *goquery.Document, pageURL *url.URL, sel collector.Selectors) []domain.RawItem {
	var items []domain.RawItem
	doc.Find(sel.Item).Each(func(_ int, node *goquery.Selection) {
		titleNode := node.Find(sel.Title).First()
		title := collapse(titleNode.Text())
		if title == "" {
			return
		}

		summary := ""
		if sel.Summary != "" {
			summary = collapse(node.Find(sel.Summary).First().Text())
		}
		if summary == "" {
			summary = siblingText(titleNode)
		}

		items = append(items, domain.RawItem{
			Title:        title,
			Summary:      summary,
			Link:         resolveLink(pageURL, itemHref(node, titleNode, sel.Link)),
			PublishedRaw: itemDate(node, sel.Date),
		})
	})
	return items
}

// siblingText looks for the nearest text after the title: its next sibling, then the
// parent's next sibling.
func siblingText(titleNode *goquery.Selection) string {
	if text := collapse(titleNode.Next().Text()); text != "" {
		return text
	}
	return collapse(titleNode.Parent().Next().Text())
}

func itemHref(node, titleNode *goquery.Selection, linkSelector string) string {
	if linkSelector != "" {
		if href, ok := node.Find(linkSelector).First().Attr("href"); ok {
			return href
		}
	}
	if href, ok := titleNode.Attr("href"); ok {
		return href
	}
	if href, ok := titleNode.Find("a[href]").First().Attr("href"); ok {
		return href
	}
	if href, ok := titleNode.Closest("a[href]").Attr("href"); ok {
		return href
	}
	href, _ := node.Find("a[href]").First().Attr("href")
	return href
}

func itemDate(node *goquery.Selection, dateSelector string) string {
	if dateSelector == "" {
		return ""
	}
	dateNode := node.Find(dateSelector).First()
	if dt, ok := dateNode.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return strings.TrimSpace(dt)
	}
	return collapse(dateNode.Text())
}

func resolveLink(pageURL *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return pageURL.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
