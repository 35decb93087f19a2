package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Doer is the request-executing surface shared by Client and
// CircuitBreakerClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int

	// Transport overrides the pooled default transport when set.
	Transport http.RoundTripper
}

// DefaultConfig returns defaults for the HTTP client. Retries are off; callers
// that want them opt in through MaxRetries.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Client is a pooled http.Client with opt-in retries for safe methods.
type Client struct {
	http *http.Client
	cfg  Config
}

// New creates a new HTTP client.
func New(cfg Config) *Client {
	rt := cfg.Transport
	if rt == nil {
		rt = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
			MaxConnsPerHost:       cfg.MaxConnsPerHost,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}
	return &Client{http: &http.Client{Transport: rt, Timeout: cfg.Timeout}, cfg: cfg}
}

// Do executes req. Only GET, HEAD and OPTIONS are retried, on network errors
// and retryable 5xx responses, up to MaxRetries extra attempts. PUT and
// DELETE are not: a cart PUT carrying an increment changes state on every
// delivery.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	attempts := 1
	if isSafe(req.Method) {
		attempts += c.cfg.MaxRetries
	}

	for n := 1; ; n++ {
		resp, err := c.http.Do(req)
		last := n == attempts

		switch {
		case err != nil && (last || !isRetryableError(err)):
			return nil, fmt.Errorf("http request failed after %d attempts: %w", n, err)
		case err == nil && (last || !retryableStatus(resp.StatusCode)):
			return resp, nil
		case err == nil:
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		if werr := sleep(ctx, c.backoff(n)); werr != nil {
			return nil, werr
		}
	}
}

// backoff doubles from RetryWaitMin after each failed attempt, capped at
// RetryWaitMax.
func (c *Client) backoff(failed int) time.Duration {
	wait := c.cfg.RetryWaitMin << (failed - 1)
	if wait <= 0 || wait > c.cfg.RetryWaitMax {
		return c.cfg.RetryWaitMax
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isSafe(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// retryableStatus excludes 501, which will not get better on retry.
func retryableStatus(code int) bool {
	return code >= 500 && code != http.StatusNotImplemented
}

// isRetryableError reports whether err is a network error worth retrying.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
