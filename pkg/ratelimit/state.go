// Package ratelimit implements the FRED request-rate gate: a sliding window
// of recent request timestamps capped at a requests-per-minute ceiling, plus a
// minimum spacing between consecutive requests.
package ratelimit

import (
	"time"
)

// Defaults for the FRED API (120 requests per minute).
const (
	// DefaultRequestsPerWindow is the maximum number of requests inside one window.
	DefaultRequestsPerWindow = 120

	// DefaultWindow is the length of the sliding window.
	DefaultWindow = 60 * time.Second

	// DefaultBuffer is added to a window wait so the oldest timestamp has
	// definitely left the window when the caller wakes up.
	DefaultBuffer = 100 * time.Millisecond
)

// State is a point-in-time snapshot of the limiter window.
type State struct {
	// InWindow is the number of recorded requests inside the trailing window.
	InWindow int `json:"in_window"`

	// Limit is the configured requests-per-window ceiling.
	Limit int `json:"limit"`

	// Oldest is the oldest recorded timestamp still inside the window.
	// Zero when the window is empty.
	Oldest time.Time `json:"oldest"`

	// Newest is the most recently recorded (or reserved) request timestamp.
	// Zero when the window is empty.
	Newest time.Time `json:"newest"`

	// Window is the configured window length.
	Window time.Duration `json:"window"`

	// MinInterval is the configured minimum spacing between requests.
	MinInterval time.Duration `json:"min_interval"`
}

// IsFull returns true if the window holds as many requests as the limit allows.
func (s *State) IsFull() bool {
	return s.InWindow >= s.Limit
}

// Remaining returns how many requests fit into the window right now.
// Returns 0 if the window is full.
func (s *State) Remaining() int {
	if s.IsFull() {
		return 0
	}
	return s.Limit - s.InWindow
}

// TimeUntilSlot returns how long a request issued at now would have to wait
// for the window to free up a slot. Spacing is not taken into account.
func (s *State) TimeUntilSlot(now time.Time, buffer time.Duration) time.Duration {
	if !s.IsFull() || s.Oldest.IsZero() {
		return 0
	}
	wait := s.Window - now.Sub(s.Oldest) + buffer
	if wait < 0 {
		return 0
	}
	return wait
}

// TimeUntilSpaced returns how long a request issued at now would have to wait
// to respect the minimum spacing after the newest recorded request.
func (s *State) TimeUntilSpaced(now time.Time) time.Duration {
	if s.Newest.IsZero() {
		return 0
	}
	wait := s.MinInterval - now.Sub(s.Newest)
	if wait < 0 {
		return 0
	}
	return wait
}
