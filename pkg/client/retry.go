package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	fredRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fred_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"error_kind"})

	fredRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fred_retry_backoff_seconds",
		Help:    "Backoff duration before retries",
		Buckets: []float64{0.5, 1, 2, 4, 5, 10},
	})

	fredRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fred_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"error_kind"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps every delay.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the FRED retry schedule: 4 attempts, waiting
// 1s, 2s and 4s between them, never more than 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff returns the delay before retry k (k starts at 1):
// min(InitialBackoff * BackoffMultiplier^(k-1), MaxBackoff).
func (c RetryConfig) Backoff(k int) time.Duration {
	if k < 1 {
		return 0
	}
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(k-1))
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	return time.Duration(d)
}

// shouldRetry determines if an error should be retried based on its kind.
func shouldRetry(kind ErrorKind) bool {
	switch kind {
	case KindTimeout, KindUpstream, KindGatewayTimeout, KindAccessRestricted, KindNetwork, KindDecode:
		return true
	default:
		// not a FRED call failure (e.g. cancelled context)
		return false
	}
}

// retryWithBackoff executes fn until it succeeds, the attempts are used up
// or ctx is cancelled.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		kind := KindOf(err)

		if !shouldRetry(kind) {
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		backoff := config.Backoff(attempt)
		fredRetriesTotal.WithLabelValues(string(kind)).Inc()
		fredRetryBackoffSeconds.Observe(backoff.Seconds())

		logger.Warn().
			Err(err).
			Str("error_kind", string(kind)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	fredRetryExhaustedTotal.WithLabelValues(string(KindOf(lastErr))).Inc()
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}

// SearchWithRetry fetches one search page, retrying failed calls with
// backoff. When every attempt fails the failure is logged and nil is
// returned: the page contributes no results but the run goes on.
func (c *Client) SearchWithRetry(ctx context.Context, params SearchParams) *SearchPage {
	var page *SearchPage

	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var err error
		page, err = c.SearchSeries(ctx, params)
		return err
	})
	if err != nil {
		c.logger.Error().
			Err(err).
			Int("offset", params.Offset).
			Int("limit", params.Limit).
			Msg("Failed to fetch data after multiple attempts")
		return nil
	}

	return page
}
