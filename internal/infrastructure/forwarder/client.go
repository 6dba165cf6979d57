package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

// ErrNotConfigured is returned when no downstream base URL is set.
var ErrNotConfigured = errors.New("forwarding base url is not configured")

const (
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 10 * time.Second
	defaultJitter    = 0.2
	defaultTimeout   = 15 * time.Second

	// upper bound on a server-requested Retry-After wait
	defaultMaxRetryAfter = 5 * time.Minute
)

// Options configures delivery and retry behaviour.
type Options struct {
	BaseURL     string
	APIKey      string
	Client      *http.Client
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// MaxRetryAfter bounds how long a 429 Retry-After may hold a record back.
	MaxRetryAfter time.Duration
	// RatePerSecond paces outbound requests; zero means unlimited.
	RatePerSecond float64
	// Jitter is the maximum fraction added on top of each backoff delay; negative disables it.
	Jitter float64
	Logger *slog.Logger
	// Sleep waits between attempts; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand returns a value in [0, 1) used for jitter.
	Rand func() float64
}

// Client relays threat records to the downstream ingestion API.
type Client struct {
	endpoint    string
	apiKey      string
	http        *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxRetry    time.Duration
	limiter     *rate.Limiter
	jitter      float64
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	rand        func() float64
}

var _ ports.Forwarder = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(opts Options) *Client {
	c := &Client{
		endpoint:    strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		http:        opts.Client,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		maxRetry:    opts.MaxRetryAfter,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		jitter:      opts.Jitter,
		logger:      opts.Logger,
		sleep:       opts.Sleep,
		rand:        opts.Rand,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = defaultMaxDelay
	}
	if c.maxRetry <= 0 {
		c.maxRetry = defaultMaxRetryAfter
	}
	if opts.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	if c.jitter < 0 {
		c.jitter = 0
	} else if c.jitter == 0 {
		c.jitter = defaultJitter
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.rand == nil {
		c.rand = rand.Float64
	}
	return c
}

// ForwardAll delivers every record; a failed record never aborts the others.
func (c *Client) ForwardAll(ctx context.Context, records []domain.ThreatRecord) []domain.ForwardOutcome {
	outcomes := make([]domain.ForwardOutcome, 0, len(records))
	for _, rec := range records {
		if ctx.Err() != nil {
			outcomes = append(outcomes, domain.ForwardOutcome{RecordID: rec.ID, Err: ctx.Err()})
			continue
		}
		outcomes = append(outcomes, c.Forward(ctx, rec))
	}
	return outcomes
}

// Forward posts one record, retrying transient failures with exponential backoff.
func (c *Client) Forward(ctx context.Context, rec domain.ThreatRecord) domain.ForwardOutcome {
	outcome := domain.ForwardOutcome{RecordID: rec.ID}
	if c.endpoint == "" {
		outcome.Err = ErrNotConfigured
		return outcome
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			outcome.Err = fmt.Errorf("forward %s: %w", rec.ID, err)
			break
		}
		outcome.Attempts = attempt

		remoteID, res := c.post(ctx, "/threats", rec)
		if res.err == nil {
			outcome.RemoteID = remoteID
			outcome.Delivered = true
			outcome.Err = nil
			return outcome
		}
		outcome.Err = res.err

		if !res.retryable || attempt == c.maxAttempts {
			break
		}

		wait := c.backoff(attempt)
		if res.retryAfter > 0 {
			wait = min(res.retryAfter, c.maxRetry)
		}
		c.logger.Debug("forward retry", "record", rec.ID, "attempt", attempt, "wait", wait, "error", res.err)
		if err := c.sleep(ctx, wait); err != nil {
			outcome.Err = fmt.Errorf("forward %s: %w", rec.ID, err)
			break
		}
	}
	return outcome
}

// backoff returns the delay after the given failed attempt: base doubling, capped, plus jitter.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if delay <= 0 || delay > c.maxDelay {
		delay = c.maxDelay
	}
	delay += time.Duration(float64(delay) * c.jitter * c.rand())
	return min(delay, c.maxDelay)
}

type attemptResult struct {
	err        error
	retryable  bool
	retryAfter time.Duration
}

type forwardResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, payload any) (string, attemptResult) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", attemptResult{err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return "", attemptResult{err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", attemptResult{err: fmt.Errorf("do request: %w", err), retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", attemptResult{
			err:        fmt.Errorf("unexpected status %s", resp.Status),
			retryable:  true,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	case resp.StatusCode >= 500:
		return "", attemptResult{err: fmt.Errorf("unexpected status %s", resp.Status), retryable: true}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", attemptResult{err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var decoded forwardResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", attemptResult{err: fmt.Errorf("decode response: %w", err)}
	}
	if !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = "downstream rejected record"
		}
		return "", attemptResult{err: errors.New(msg)}
	}
	return decoded.ID, attemptResult{}
}

// parseRetryAfter accepts delta seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
