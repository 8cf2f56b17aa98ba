// Package fetch provides the retrying HTTP client used by every pipeline
// stage that touches the network.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// Default configuration values.
const (
	DefaultRetries   = 3
	DefaultBaseDelay = 1 * time.Second
	DefaultTimeout   = 30 * time.Second

	// UserAgent identifies the pipeline to the decisions site.
	UserAgent = "Mozilla/5.0 (compatible; fospipe/1.0; +https://github.com/MEMAtest/fos-decisions-pipeline)"
)

// Config holds configuration for the retrying client.
type Config struct {
	// Retries is the number of retry attempts after the first failure
	// (default: 3, so 4 attempts in total).
	Retries int

	// BaseDelay is the first backoff interval; attempt n waits
	// BaseDelay * 2^(n-1) (default: 1s).
	BaseDelay time.Duration

	// Timeout is the per-attempt request timeout (default: 30s).
	Timeout time.Duration

	// Headers are merged into every request after the defaults, so
	// callers can override the user agent or add attribution headers.
	Headers map[string]string
}

// Client issues GET requests with exponential backoff. A non-2xx status
// counts as a failure and is retried like a transport error.
type Client struct {
	httpClient *http.Client
	retries    int
	baseDelay  time.Duration
	headers    map[string]string

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a retrying client. Zero-valued config fields take the
// package defaults.
func NewClient(cfg Config) *Client {
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retries:    cfg.Retries,
		baseDelay:  cfg.BaseDelay,
		headers:    cfg.Headers,
		sleep:      sleepCtx,
	}
}

// Get fetches url, retrying transient failures with exponential backoff.
// It returns the response body. Callers should treat any returned error as
// "fetch ultimately failed"; no more specific contract is offered.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retries+1; attempt++ {
		body, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt <= c.retries {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			logger.Warn("fetch %s failed (attempt %d/%d), retrying in %s: %v",
				url, attempt, c.retries+1, delay, err)
			if serr := c.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w",
		domain.ErrFetchFailed, url, c.retries+1, lastErr)
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
