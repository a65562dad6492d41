// Package client provides the FRED HTTP client with shared rate limiting,
// per-call timeouts, typed error translation and retry.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FRED endpoints and limits.
const (
	DefaultBaseURL = "https://api.stlouisfed.org/fred"

	EndpointSeriesSearch       = "/series/search"
	EndpointSeriesObservations = "/series/observations"

	// MaxPageSize is the largest limit FRED accepts on both endpoints.
	MaxPageSize = 1000

	// DefaultTimeout is the fixed per-call timeout.
	DefaultTimeout = 30 * time.Second

	DefaultUserAgent = "fred-series-harvester/0.1.0"

	maxErrorBody = 64 * 1024
)

// Prometheus metrics for FRED client operations.
var (
	fredRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fred_requests_total",
		Help: "Total FRED requests by endpoint and status",
	}, []string{"endpoint", "status"})

	fredRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fred_request_duration_seconds",
		Help:    "FRED request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	fredErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fred_errors_total",
		Help: "Total FRED call failures by error kind",
	}, []string{"kind"})
)

// HTTPClient is the subset of *http.Client the FRED client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the client configuration.
type Config struct {
	// APIKey is the FRED credential sent as api_key (REQUIRED).
	APIKey string

	// BaseURL of the FRED API, without trailing slash.
	BaseURL string

	// UserAgent header.
	UserAgent string

	// Timeout applies to each HTTP call, independent of retries.
	Timeout time.Duration

	// Limiter is shared by every call. A default FRED limiter is created when nil.
	Limiter *ratelimit.Limiter

	// Retry configures SearchWithRetry.
	Retry RetryConfig

	// HTTPClient overrides the transport (for testing).
	HTTPClient HTTPClient
}

// DefaultConfig returns a configuration with the FRED defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:    apiKey,
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		Retry:     DefaultRetryConfig(),
	}
}

// Client is the FRED API client.
type Client struct {
	httpClient HTTPClient
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger
}

// New creates a new FRED client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	logger := log.With().Str("component", "fred-client").Logger()

	limiter := cfg.Limiter
	if limiter == nil {
		var err error
		limiter, err = ratelimit.NewLimiter(ratelimit.DefaultConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("create rate limiter: %w", err)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		config:     cfg,
		logger:     logger,
	}, nil
}

// SearchSeries fetches one page of /series/search.
func (c *Client) SearchSeries(ctx context.Context, params SearchParams) (*SearchPage, error) {
	var page SearchPage
	if err := c.get(ctx, EndpointSeriesSearch, params.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SeriesObservations fetches one page of /series/observations for seriesID.
func (c *Client) SeriesObservations(ctx context.Context, seriesID string, params ObservationParams) (*ObservationsPage, error) {
	var page ObservationsPage
	if err := c.get(ctx, EndpointSeriesObservations, params.values(seriesID), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// get acquires the limiter, performs the GET and decodes the JSON body into dest.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, dest interface{}) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	startTime := time.Now()
	defer func() {
		fredRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	query.Set("api_key", c.config.APIKey)
	query.Set("file_type", "json")

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.config.BaseURL+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("offset", query.Get("offset")).
		Msg("Executing FRED request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(ctx, callCtx, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := classifyStatus(endpoint, resp.StatusCode, resp.Status, string(body))
		fredErrorsTotal.WithLabelValues(string(apiErr.Kind)).Inc()
		fredRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_kind", string(apiErr.Kind)).
			Msg("FRED request error")
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if callCtx.Err() != nil {
			return c.fail(ctx, callCtx, endpoint, err)
		}
		fredErrorsTotal.WithLabelValues(string(KindDecode)).Inc()
		fredRequestsTotal.WithLabelValues(endpoint, "decode_error").Inc()
		return &APIError{Kind: KindDecode, Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	fredRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	return nil
}

// fail translates a transport-level error. Cancellation of the caller's
// context is returned as-is; everything else becomes an *APIError.
func (c *Client) fail(ctx, callCtx context.Context, endpoint string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", endpoint, ctx.Err())
	}

	kind := KindNetwork
	var netErr net.Error
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}

	fredErrorsTotal.WithLabelValues(string(kind)).Inc()
	fredRequestsTotal.WithLabelValues(endpoint, string(kind)).Inc()

	c.logger.Debug().
		Err(err).
		Str("endpoint", endpoint).
		Str("error_kind", string(kind)).
		Msg("FRED request failed")

	return &APIError{Kind: kind, Endpoint: endpoint, Timeout: c.config.Timeout, Err: err}
}

// classifyStatus maps a non-2xx response to an *APIError.
func classifyStatus(endpoint string, statusCode int, status, body string) *APIError {
	if status == "" {
		status = fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode))
	}

	kind := KindUpstream
	switch statusCode {
	case http.StatusGatewayTimeout:
		kind = KindGatewayTimeout
	case http.StatusForbidden:
		kind = KindAccessRestricted
	}

	return &APIError{
		Kind:       kind,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Status:     status,
		Body:       strings.TrimSpace(body),
	}
}

// Limiter returns the limiter shared by this client.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Config returns the effective client configuration.
func (c *Client) Config() Config {
	return c.config
}
