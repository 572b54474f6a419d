// Package venue wraps the prediction-market venue REST API with rate
// limiting, retry/backoff and a per-service circuit breaker.
package venue

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"polytrader/internal/config"
	"polytrader/internal/logger"
	"polytrader/internal/pkg/circuit"
)

// retryableStatuses are transient server-side statuses worth another attempt.
// 429 is handled separately via Retry-After.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client is a per-service resilient HTTP client. The minimum inter-request
// interval delays the current caller only; there is no fairness queue.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	apiKey      string
	breaker     *circuit.Breaker
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
	minInterval time.Duration

	lastRequest chan time.Time // 1-buffered; owns the throttle timestamp
}

// NewClient constructs a venue client from configuration.
func NewClient(cfg config.VenueConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("venue.api_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing venue.api_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402
		}
	}
	c := &Client{
		baseURL:     parsed,
		httpClient:  &http.Client{Timeout: timeout, Transport: transport},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		breaker:     circuit.NewBreaker("venue", cfg.CircuitBreakerThreshold, time.Duration(cfg.CircuitResetMs)*time.Millisecond),
		maxRetries:  cfg.MaxRetries,
		baseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		maxDelay:    time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		minInterval: time.Duration(cfg.MinIntervalMs) * time.Millisecond,
		lastRequest: make(chan time.Time, 1),
	}
	if c.baseDelay <= 0 {
		c.baseDelay = 500 * time.Millisecond
	}
	if c.maxDelay <= 0 {
		c.maxDelay = 10 * time.Second
	}
	c.lastRequest <- time.Time{}
	return c, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() circuit.State {
	return c.breaker.State()
}

func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do runs the request with the full resilience stack: circuit check first
// (fail fast, no retry consumed), then up to maxRetries+1 attempts with
// exponential backoff and jitter. Only 5xx responses feed the breaker.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("venue: encoding request body failed: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if !c.breaker.Allow() {
			return nil, ErrCircuitOpen
		}
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}

		status, respBody, retryAfter, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			// Network error: retry without feeding the breaker.
			lastErr = fmt.Errorf("venue: %s %s failed: %w", method, path, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		switch {
		case status >= 200 && status < 300:
			c.breaker.RecordSuccess()
			return respBody, nil

		case status == http.StatusTooManyRequests:
			// Honor Retry-After instead of computed backoff; this still
			// consumes a retry slot.
			lastErr = &HTTPError{Status: status, Body: string(respBody)}
			if attempt < c.maxRetries {
				wait := retryAfterDelay(retryAfter)
				logger.Warnf("venue: rate limited, waiting %s", wait)
				if err := c.sleep(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr

		case status >= 500:
			c.breaker.RecordFailure()
			lastErr = &HTTPError{Status: status, Body: string(respBody)}
			if retryableStatuses[status] && attempt < c.maxRetries {
				if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr

		case retryableStatuses[status]:
			// Retryable non-5xx (request timeout); does not feed the breaker.
			lastErr = &HTTPError{Status: status, Body: string(respBody)}
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr

		default:
			// Non-retryable 4xx: propagate immediately.
			return nil, &HTTPError{Status: status, Body: string(respBody)}
		}
	}
	return nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (int, []byte, string, error) {
	target := c.baseURL.JoinPath(path).String()
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, "", err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, "", err
	}
	return resp.StatusCode, body, resp.Header.Get("Retry-After"), nil
}

// throttle enforces the fixed minimum spacing between successive requests
// from this instance.
func (c *Client) throttle(ctx context.Context) error {
	last := <-c.lastRequest
	defer func() { c.lastRequest <- time.Now() }()
	if c.minInterval <= 0 || last.IsZero() {
		return nil
	}
	wait := c.minInterval - time.Since(last)
	if wait <= 0 {
		return nil
	}
	return sleepCtx(ctx, wait)
}

// backoff computes min(base*2^attempt + jitter(0-30%), maxDelay).
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.baseDelay) * math.Pow(2, float64(attempt))
	d += d * 0.3 * rand.Float64()
	if d > float64(c.maxDelay) {
		d = float64(c.maxDelay)
	}
	return time.Duration(d)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// retryAfterDelay parses a Retry-After header value; falls back to one
// second when absent or malformed.
func retryAfterDelay(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return time.Second
}
