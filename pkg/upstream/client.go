// Package upstream provides the HTTP executor shared by every third-party
// API client: user agent, timeouts, error classification, retries with
// backoff, an optional quota gate, and Prometheus metrics.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tripcost/pkg/ratelimit"
)

// Prometheus metrics for upstream operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcost_upstream_requests_total",
		Help: "Total upstream requests by upstream and status",
	}, []string{"upstream", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripcost_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"upstream"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcost_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"upstream", "class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcost_upstream_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"upstream", "error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripcost_upstream_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"upstream", "error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcost_upstream_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"upstream", "error_class"})
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Config holds the client configuration.
type Config struct {
	// Name labels metrics and logs (e.g., "football")
	Name string

	// BaseURL is prepended to request paths
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout bounds each attempt; ignored when HTTPClient is set
	Timeout time.Duration

	// HTTPClient overrides the transport (e.g. an OAuth2 client)
	HTTPClient *http.Client

	// Header is added to every request (API keys)
	Header http.Header

	// Quota gates requests on the upstream's remaining allowance. Optional.
	Quota *ratelimit.Tracker

	// Retry overrides the default retry policy
	Retry RetryPolicy
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(name, baseURL, userAgent string) Config {
	return Config{
		Name:      name,
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   10 * time.Second,
		Retry:     DefaultRetryPolicy(),
	}
}

// Client executes GET requests against one upstream API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("upstream name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryPolicy()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     log.With().Str("component", "upstream").Str("upstream", cfg.Name).Logger(),
	}, nil
}

// Name returns the upstream label.
func (c *Client) Name() string {
	return c.config.Name
}

// GetJSON performs a GET on path with query and returns the body of a 2xx
// response. Non-2xx responses become *Error; retriable classes are retried.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	allowed, err := c.allow(ctx)
	if err != nil {
		return nil, err
	}
	if !allowed {
		requestsTotal.WithLabelValues(c.config.Name, "quota_blocked").Inc()
		return nil, &Error{
			Upstream: c.config.Name,
			Class:    ErrorClassRateLimit,
			Message:  "request blocked",
			Err:      ratelimit.ErrQuotaExhausted,
		}
	}

	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body []byte
	err = retryWithBackoff(ctx, c.config.Name, c.config.Retry, c.logger, func() (ErrorClass, error) {
		var attemptErr error
		body, attemptErr = c.do(ctx, target)
		if attemptErr != nil {
			return ClassOf(attemptErr), attemptErr
		}
		return "", nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) allow(ctx context.Context) (bool, error) {
	if c.config.Quota == nil {
		return true, nil
	}
	allowed, err := c.config.Quota.ShouldAllowRequest(ctx)
	if err != nil {
		// Unknown quota must not take the upstream down.
		c.logger.Warn().Err(err).Msg("Quota check failed, allowing request")
		return true, nil
	}
	return allowed, nil
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Upstream: c.config.Name, Class: ErrorClassClient, Message: "create request", Err: err}
	}
	for k, vs := range c.config.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(c.config.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		errorsTotal.WithLabelValues(c.config.Name, string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(c.config.Name, "network_error").Inc()
		c.logger.Warn().Err(err).Str("url", req.URL.Path).Msg("HTTP request failed")
		return nil, &Error{Upstream: c.config.Name, Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(c.config.Name, strconv.Itoa(resp.StatusCode)).Inc()

	if c.config.Quota != nil {
		if err := c.config.Quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(c.config.Name, string(ErrorClassNetwork)).Inc()
		return nil, &Error{Upstream: c.config.Name, StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
	}

	if class := classifyStatus(resp.StatusCode); class != "" {
		errorsTotal.WithLabelValues(c.config.Name, string(class)).Inc()
		c.logger.Warn().
			Str("url", req.URL.Path).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")
		return nil, &Error{Upstream: c.config.Name, StatusCode: resp.StatusCode, Class: class, Message: resp.Status}
	}

	c.logger.Debug().
		Str("url", req.URL.Path).
		Int("status", resp.StatusCode).
		Msg("Upstream request succeeded")
	return body, nil
}

// classifyStatus returns the error class of an HTTP status, or "" for success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	case status < 200 || status >= 300:
		return ErrorClassClient
	default:
		return ""
	}
}

// DecodeError wraps a body that parsed but didn't contain what was expected.
func (c *Client) DecodeError(msg string, err error) error {
	errorsTotal.WithLabelValues(c.config.Name, string(ErrorClassDecode)).Inc()
	return &Error{Upstream: c.config.Name, Class: ErrorClassDecode, Message: msg, Err: err}
}

// IsRateLimited reports whether err was caused by a 429 or a quota block.
func IsRateLimited(err error) bool {
	return ClassOf(err) == ErrorClassRateLimit || errors.Is(err, ratelimit.ErrQuotaExhausted)
}
