package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
)

const (
	defaultUserAgent = "ThreatScanner/1.0 (+open-source threat aggregation)"
	defaultTimeout   = 20 * time.Second
	defaultLimit     = 20
	maxBodyBytes     = 8 << 20
)

const tracerName = "ThreatScanner/internal/infrastructure/parser"

// Options configures the shared fetch behaviour of every collector.
type Options struct {
	Client    *http.Client
	UserAgent string
	// Timeout bounds a single source fetch, including body parsing.
	Timeout time.Duration
	// Delay is the courtesy pause between the end of one source fetch and the start of the next.
	Delay time.Duration
	// Limit caps the items kept per source when the source does not set its own.
	Limit   int
	Logger  *slog.Logger
	OnError func(kind domain.SourceKind, source string, err error)
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

type fetchFunc func(ctx context.Context, src collector.Source) ([]domain.RawItem, error)

// base implements the per-source loop shared by all collectors.
type base struct {
	kind      domain.SourceKind
	client    *http.Client
	userAgent string
	timeout   time.Duration
	delay     time.Duration
	limit     int
	logger    *slog.Logger
	onError   func(kind domain.SourceKind, source string, err error)
	tracer    trace.Tracer
}

func newBase(kind domain.SourceKind, opts Options) base {
	b := base{
		kind:      kind,
		client:    opts.Client,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		delay:     opts.Delay,
		limit:     opts.Limit,
		logger:    opts.Logger,
		onError:   opts.OnError,
	}
	if b.timeout <= 0 {
		b.timeout = defaultTimeout
	}
	if b.client == nil {
		b.client = &http.Client{Timeout: b.timeout}
	}
	if b.userAgent == "" {
		b.userAgent = defaultUserAgent
	}
	if b.limit <= 0 {
		b.limit = defaultLimit
	}
	provider := opts.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	b.tracer = provider.Tracer(tracerName)
	return b
}

// Kind reports the source kind the collector serves.
func (b base) Kind() domain.SourceKind {
	return b.kind
}

// each fetches sources sequentially in priority order with courtesy pacing. A failing
// source is logged and skipped; the remaining sources still run.
func (b base) each(ctx context.Context, sources []collector.Source, fetch fetchFunc) []domain.RawItem {
	ctx, span := b.tracer.Start(ctx, "collect."+string(b.kind))
	defer span.End()

	var aggregated []domain.RawItem
	for i, src := range collector.ByPriority(sources) {
		if i > 0 {
			if err := pause(ctx, b.delay); err != nil {
				b.warn("collection interrupted", "error", err)
				break
			}
		}

		items, err := b.fetchOne(ctx, src, fetch)
		if err != nil {
			b.fail(src, err)
			continue
		}

		items = capRecent(items, b.limitFor(src))
		for i := range items {
			b.annotate(&items[i], src)
		}
		b.debug("source produced items", "source", src.Name, "count", len(items))
		aggregated = append(aggregated, items...)
	}

	span.SetAttributes(
		attribute.Int("sources", len(sources)),
		attribute.Int("items", len(aggregated)),
	)
	return aggregated
}

// pause waits d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b base) fetchOne(ctx context.Context, src collector.Source, fetch fetchFunc) (items []domain.RawItem, err error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("parse panic: %v", r)
		}
	}()
	return fetch(ctx, src)
}

func (b base) limitFor(src collector.Source) int {
	if src.Limit > 0 {
		return src.Limit
	}
	return b.limit
}

func (b base) annotate(item *domain.RawItem, src collector.Source) {
	if item.SourceName == "" {
		item.SourceName = src.Name
	}
	if item.SourceURL == "" {
		item.SourceURL = src.URL
	}
	if item.Kind == "" {
		item.Kind = b.kind
	}
	if item.CategoryHint == "" {
		item.CategoryHint = src.Category
	}
	item.Priority = src.Priority
}

// get performs a GET with the identification header and returns the body.
func (b base) get(ctx context.Context, pageURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (b base) fail(src collector.Source, err error) {
	b.warn("source failed", "source", src.Name, "url", src.URL, "error", err)
	if b.onError != nil {
		b.onError(b.kind, src.Name, err)
	}
}

func (b base) warn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

func (b base) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

// capRecent keeps the newest limit items; undated items sort after dated ones.
func capRecent(items []domain.RawItem, limit int) []domain.RawItem {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Published, items[j].Published
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.After(b)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
