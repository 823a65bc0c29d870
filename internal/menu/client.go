// Package menu fetches daily dining court menus from the campus dining API.
package menu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"foodvote/internal/bank"
	"foodvote/pkg/platform/sentinel"
)

// ErrFetch reports that a day's menu could not be retrieved or parsed.
var ErrFetch = fmt.Errorf("menu fetch failed: %w", sentinel.ErrUnavailable)

const (
	// DefaultTimeout bounds a single request to the dining API.
	DefaultTimeout = 15 * time.Second

	dateLayout       = "2006-01-02"
	maxResponseBytes = 16 << 20
)

// Feed yields the raw (location, item) pairs served on a date.
type Feed interface {
	Fetch(ctx context.Context, date time.Time) ([]bank.MenuItem, error)
}

// Client is a Feed backed by the GraphQL endpoint. Safe for concurrent use;
// all calls share one rate limiter.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps requests per second with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithRetries sets how many times a transport failure or 5xx is retried.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = max(n, 0)
		c.backoff = backoff
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client with a per-request timeout, 4 requests/second
// and one retry.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		endpoint:   Endpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(4), 2),
		retries:    1,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Fetch returns every item served at every dining court on date, in feed
// order. Meal and station structure is flattened.
func (c *Client) Fetch(ctx context.Context, date time.Time) ([]bank.MenuItem, error) {
	day := date.Format(dateLayout)
	body, err := json.Marshal(request{
		OperationName: operationName,
		Variables:     map[string]any{"date": day},
		Query:         query,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrFetch, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.WarnContext(ctx, "retrying menu fetch", "date", day, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %w", ErrFetch, day, ctx.Err())
			case <-time.After(c.backoff):
			}
		}
		items, retry, err := c.do(ctx, body)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrFetch, day, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) (items []bank.MenuItem, retry bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, err
	}
	items, err = parse(raw)
	return items, false, err
}

func parse(raw []byte) ([]bank.MenuItem, error) {
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if r.Data == nil {
		if len(r.Errors) > 0 {
			return nil, errors.New("graphql: " + r.Errors[0].Message)
		}
		return nil, errors.New("response has no data")
	}

	var items []bank.MenuItem
	for _, court := range r.Data.DiningCourts {
		if court.DailyMenu == nil {
			continue
		}
		for _, m := range court.DailyMenu.Meals {
			for _, st := range m.Stations {
				for _, shell := range st.Items {
					items = append(items, bank.MenuItem{Location: court.FormalName, Item: shell.Item.Name})
				}
			}
		}
	}
	return items, nil
}
