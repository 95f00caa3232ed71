// Package httpds is the retrying HTTP client used to reach remote fix stores,
// intake catalogs, inventories and dataset files.
//
// Transient failures (transport errors, 429, 5xx) are retried with
// exponential backoff. Context cancellation is honoured both during requests
// and while waiting between attempts. A 404 surfaces as ErrNotFound so that
// callers can map "no such document" onto an empty result.
package httpds

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"daops/internal/config"
)

// ErrNotFound is returned by Fetch for a 404 response.
var ErrNotFound = errors.New("httpds: not found")

// StatusError is returned by Fetch for a non-2xx, non-404 final response.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: %s %s: status %d", e.Method, e.URL, e.Code)
}

// Config configures the client.
//
// Zero values are given defaults:
//   - Timeout:        30s
//   - MaxRetries:     0 (initial attempt only)
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// BaseHeaders are sent with every request; per-request headers win.
	BaseHeaders http.Header

	// Transport overrides the default *http.Transport (tests, proxies).
	Transport http.RoundTripper

	Logger *zap.Logger
}

// FromConfig maps the http section of the daops config onto Config.
func FromConfig(h config.HTTP, log *zap.Logger) Config {
	return Config{
		Timeout:            h.Timeout,
		MaxRetries:         h.MaxRetries,
		InitialBackoff:     h.InitialBackoff,
		MaxBackoff:         h.MaxBackoff,
		InsecureSkipVerify: h.InsecureSkipVerify,
		Logger:             log,
	}
}

// Client wraps an http.Client with retry and backoff behaviour.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	baseHeaders    http.Header
	log            *zap.Logger

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a Client from cfg, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
			},
		}
	}

	hdr := http.Header{}
	for k, vs := range cfg.BaseHeaders {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		baseHeaders:    hdr,
		log:            cfg.Logger,
		sleep:          sleepWithContext,
	}
}

// Do sends a request, retrying transient failures. body is re-sent on each
// attempt. The caller must close the returned response body.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers http.Header) (*http.Response, error) {
	if method == "" {
		return nil, fmt.Errorf("httpds: method must not be empty")
	}
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}

	attempts := c.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		for k, vs := range c.baseHeaders {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			if !isRetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			_ = resp.Body.Close()
			lastErr = &StatusError{Method: method, URL: url, Code: resp.StatusCode}
		}

		if attempt+1 >= attempts {
			return nil, lastErr
		}

		backoff := backoffDuration(c.initialBackoff, attempt, c.maxBackoff)
		c.log.Debug("retrying request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Get is Do with GET. The caller must close the response body.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, headers)
}

// Fetch GETs url and returns the whole body. 404 yields ErrNotFound; any
// other non-2xx status yields a *StatusError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Method: http.MethodGet, URL: url, Code: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpds: read %s: %w", url, err)
	}
	return b, nil
}

// isRetryableStatus treats 429 and 5xx as transient.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// backoffDuration returns initial*2^attempt clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial > max {
			return max
		}
		return initial
	}
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// sleepWithContext waits for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
