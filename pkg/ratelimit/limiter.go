package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request gating.
var (
	fredRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fred_ratelimit_wait_seconds",
		Help:    "Time callers spent waiting for a rate limit slot",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 15, 30, 60},
	})

	fredRateLimitWindowRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fred_ratelimit_window_requests",
		Help: "Number of requests recorded in the current rate limit window",
	})
)

// Config holds the limiter configuration.
type Config struct {
	// Limit is the maximum number of requests per window.
	Limit int

	// Window is the sliding window length.
	Window time.Duration

	// Buffer is added to window waits.
	Buffer time.Duration

	// MinInterval is the minimum spacing between two requests.
	// Zero disables spacing; use DefaultConfig for Window/Limit spacing.
	MinInterval time.Duration
}

// DefaultConfig returns the FRED limits: 120 requests per minute, 100ms
// buffer, and a spacing of 500ms.
func DefaultConfig() Config {
	return Config{
		Limit:       DefaultRequestsPerWindow,
		Window:      DefaultWindow,
		Buffer:      DefaultBuffer,
		MinInterval: DefaultWindow / DefaultRequestsPerWindow,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be > 0 (got %d)", c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be > 0 (got %s)", c.Window)
	}
	if c.Buffer < 0 || c.MinInterval < 0 {
		return fmt.Errorf("buffer and min interval must not be negative")
	}
	return nil
}

// Limiter gates outgoing requests. One instance is shared by every caller
// that talks to the same API; it is safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	config Config
	stamps []time.Time // ascending; may contain reserved future slots
	logger zerolog.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter. It returns an error for an invalid config.
func NewLimiter(cfg Config, logger zerolog.Logger) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rate limit config: %w", err)
	}
	return &Limiter{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Acquire blocks until one more request may be issued and records it.
// The slot is reserved before waiting, so concurrent callers are spread out
// instead of all claiming the same free slot. If ctx is cancelled during the
// wait the reservation is released and ctx.Err() is returned.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	slot := l.reserve(now)
	inWindow := len(l.stamps)
	l.mu.Unlock()

	fredRateLimitWindowRequests.Set(float64(inWindow))

	wait := slot.Sub(now)
	if wait <= 0 {
		fredRateLimitWaitSeconds.Observe(0)
		return nil
	}

	l.logger.Debug().
		Dur("wait", wait).
		Int("in_window", inWindow).
		Msg("Waiting for rate limit slot")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		l.release(slot)
		return ctx.Err()
	case <-timer.C:
	}

	fredRateLimitWaitSeconds.Observe(wait.Seconds())
	return nil
}

// Snapshot returns the current window state.
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())

	state := State{
		InWindow:    len(l.stamps),
		Limit:       l.config.Limit,
		Window:      l.config.Window,
		MinInterval: l.config.MinInterval,
	}
	if n := len(l.stamps); n > 0 {
		state.Oldest = l.stamps[0]
		state.Newest = l.stamps[n-1]
	}
	return state
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// reserve computes the earliest slot a request arriving at now may use and
// records it. Caller must hold l.mu.
func (l *Limiter) reserve(now time.Time) time.Time {
	l.prune(now)

	slot := now

	n := len(l.stamps)
	if n >= l.config.Limit {
		// the request Limit positions back has to leave the window first
		leaving := l.stamps[n-l.config.Limit]
		if free := leaving.Add(l.config.Window + l.config.Buffer); free.After(slot) {
			slot = free
		}
	}

	// never before the newest stamp, so stamps stay ascending
	if n > 0 {
		if spaced := l.stamps[n-1].Add(l.config.MinInterval); spaced.After(slot) {
			slot = spaced
		}
	}

	l.stamps = append(l.stamps, slot)
	return slot
}

// prune drops timestamps older than the window. Caller must hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.config.Window)
	drop := 0
	for drop < len(l.stamps) && l.stamps[drop].Before(cutoff) {
		drop++
	}
	if drop > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[drop:]...)
	}
}

// release removes a reserved slot that was never used.
func (l *Limiter) release(slot time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.stamps) - 1; i >= 0; i-- {
		if l.stamps[i].Equal(slot) {
			l.stamps = append(l.stamps[:i], l.stamps[i+1:]...)
			return
		}
	}
}
