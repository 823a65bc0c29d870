package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxSnapshotBytes = 64 << 20

// HTTP fetches a snapshot with a GET request, for example from a raw file URL
// in a repository or a CDN.
type HTTP struct {
	URL     string
	client  *http.Client
	retries int
	backoff time.Duration
}

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithRetries sets how many extra attempts follow a transport failure.
func WithRetries(n int, backoff time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.retries = n
		h.backoff = backoff
	}
}

// NewHTTP returns a source reading url with a bounded timeout and a single
// retry by default.
func NewHTTP(url string, timeout time.Duration, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		URL:     url,
		client:  &http.Client{Timeout: timeout},
		retries: 1,
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTP) Describe() string {
	return h.URL
}

func (h *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= h.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fetchErr(h, ctx.Err())
			case <-time.After(h.backoff):
			}
		}
		data, retry, err := h.fetchOnce(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (h *HTTP) fetchOnce(ctx context.Context) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, false, fetchErr(h, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, true, fetchErr(h, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, notFound(h)
	case resp.StatusCode >= 500:
		return nil, true, fetchErr(h, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, false, fetchErr(h, fmt.Errorf("status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil {
		return nil, true, fetchErr(h, err)
	}
	if len(data) > maxSnapshotBytes {
		return nil, false, fetchErr(h, fmt.Errorf("snapshot exceeds %d bytes", maxSnapshotBytes))
	}
	return data, false, nil
}
