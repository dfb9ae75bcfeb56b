package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Client is a wrapper for HTTP client with rate limiting and retries
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	opts       Options
}

// Options holds options for creating a new Client
type Options struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetries      uint64
	MaxRetryTimeout time.Duration
}

// StatusError represents an error due to a non-2xx HTTP status code
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	}
	return fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// New creates a new HTTP client with rate limiting
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: opts.Timeout},
		Limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		opts:       opts,
	}
}

// Do performs an HTTP request with rate limiting and retries and returns the body.
// Bodies are buffered so a retried request can be replayed.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	var out []byte
	operation := func() error {
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
			if statusErr.Retryable() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		out = data
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = c.opts.MaxRetryTimeout
	b := backoff.WithContext(backoff.WithMaxRetries(strategy, c.opts.MaxRetries), ctx)

	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return out, nil
}

// DoJSON marshals in (when non-nil), performs the request and decodes the response into out (when non-nil)
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		if headers == nil {
			headers = map[string]string{}
		}
		headers["Content-Type"] = "application/json"
	}

	data, err := c.Do(ctx, method, url, headers, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
