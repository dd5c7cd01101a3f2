// Package client provides the retrying HTTP client used for all outbound
// upstream calls. It absorbs transient failures (429, 5xx, network) with
// bounded retries honoring Retry-After, and propagates definitive
// failures immediately.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for outbound requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statproxy_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statproxy_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statproxy_upstream_retries_total",
		Help: "Total retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statproxy_upstream_retry_exhausted_total",
		Help: "Total times the retry budget was exhausted by error class",
	}, []string{"error_class"})
)

// Config holds the client configuration.
type Config struct {
	// MaxRetries is the total number of attempts per request.
	MaxRetries int

	// DefaultDelay is the backoff used when the upstream sends no
	// Retry-After header.
	DefaultDelay time.Duration

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// UserAgent identifies the proxy to upstream providers.
	UserAgent string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		DefaultDelay: 1 * time.Second,
		Timeout:      30 * time.Second,
		UserAgent:    "stats-proxy/0.1.0",
	}
}

// Client is the retrying HTTP client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a retrying client.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DefaultDelay <= 0 {
		cfg.DefaultDelay = 1 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Get performs a GET request with retry handling.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.RequestWithRetry(ctx, http.MethodGet, url, nil, nil)
}

// RequestWithRetry issues a request with up to MaxRetries total attempts.
// On a transient failure it sleeps for the Retry-After header value when
// present, else DefaultDelay, then retries. Definitive failures (404,
// other 4xx) propagate immediately without consuming retry budget.
// Exhausting retries returns an error carrying the last status.
func (c *Client) RequestWithRetry(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	endpoint := urlPath(url)

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var lastStatus int
	var lastStatusText string
	var lastClass ErrorClass
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		data, status, statusText, retryAfter, err := c.attempt(ctx, method, url, body, headers)
		if err != nil {
			// Transport failure: retryable.
			lastClass = ErrorClassNetwork
			lastErr = err
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Upstream request failed")
		} else {
			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()

			if status >= 200 && status < 300 {
				if attempt > 1 {
					c.logger.Info().
						Str("endpoint", endpoint).
						Int("attempt", attempt).
						Msg("Request succeeded after retry")
				}
				return data, nil
			}

			lastStatus = status
			lastStatusText = statusText
			lastClass = classifyStatus(status)

			if status == http.StatusNotFound {
				return nil, &StatusError{StatusCode: status, Status: statusText, Err: ErrNotFound}
			}
			if !retryableStatus(status) {
				return nil, &StatusError{StatusCode: status, Status: statusText}
			}

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", status).
				Int("attempt", attempt).
				Str("error_class", string(lastClass)).
				Msg("Transient upstream error")
		}

		if attempt >= c.config.MaxRetries {
			break
		}

		delay := c.retryDelay(retryAfter, err)
		retriesTotal.WithLabelValues(string(lastClass)).Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Dur("backoff", delay).
			Int("attempt", attempt).
			Msg("Retrying after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-timer.C:
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", lastStatus).
		Int("max_attempts", c.config.MaxRetries).
		Msg("Retry attempts exhausted")

	taxonomy := ErrTimeout
	if lastClass == ErrorClassRateLimit {
		taxonomy = ErrRateLimited
	}
	if lastStatus > 0 {
		return nil, &StatusError{StatusCode: lastStatus, Status: lastStatusText, Err: taxonomy}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", taxonomy, c.config.MaxRetries, lastErr)
}

// attempt executes a single request and fully drains the response.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, headers map[string]string) (data []byte, status int, statusText, retryAfter string, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", "", err
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", "", fmt.Errorf("read response body: %w", err)
	}

	return data, resp.StatusCode, resp.Status, resp.Header.Get("Retry-After"), nil
}

// retryDelay picks the backoff before the next attempt: Retry-After when
// the upstream sent one, else the configured default. Honoring provider
// back-pressure avoids amplifying provider-side throttling.
func (c *Client) retryDelay(retryAfter string, attemptErr error) time.Duration {
	if attemptErr != nil || retryAfter == "" {
		return c.config.DefaultDelay
	}
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return c.config.DefaultDelay
}

// urlPath extracts the path component for metric labels, keeping raw URLs
// (and their query strings) out of the label space.
func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}
