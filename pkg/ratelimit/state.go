// Package ratelimit throttles outbound requests per upstream service,
// enforcing a minimum inter-request delay and a sliding-window request cap.
//
// Window state is mirrored to Redis and advanced with a single Lua script
// so the compute-then-commit step stays atomic across server replicas.
// When Redis is unreachable the limiter degrades to per-process state
// under a per-service mutex rather than blocking all traffic.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Limits configures one service's throttling.
type Limits struct {
	// MinDelay is the minimum spacing between two requests.
	MinDelay time.Duration

	// Window is the sliding-window span.
	Window time.Duration

	// MaxRequests is the request cap within one window.
	MaxRequests int
}

// DefaultLimits matches the free tiers of the fronted stats providers:
// one request per second, 50 requests per minute.
func DefaultLimits() Limits {
	return Limits{
		MinDelay:    1 * time.Second,
		Window:      60 * time.Second,
		MaxRequests: 50,
	}
}

// state holds one service's throttling state. lastRequest, windowStart and
// count are only touched under mu: the compute-wait-then-commit sequence
// must be atomic or concurrent callers burst past the limit.
type state struct {
	mu     sync.Mutex
	limits Limits

	lastRequest time.Time
	windowStart time.Time
	count       int

	requests atomic.Int64
	waits    atomic.Int64
	degraded atomic.Bool
}

// reserve computes the wait until the next request is permitted and, when
// no wait is needed, commits the request. Callers must not hold mu.
func (s *state) reserve(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.windowStart) >= s.limits.Window {
		s.windowStart = now
		s.count = 0
	}

	earliest := s.lastRequest.Add(s.limits.MinDelay)
	if s.count >= s.limits.MaxRequests {
		if windowEnd := s.windowStart.Add(s.limits.Window); windowEnd.After(earliest) {
			earliest = windowEnd
		}
	}

	if earliest.After(now) {
		return earliest.Sub(now)
	}

	s.lastRequest = now
	s.count++
	return 0
}

// snapshot returns the current window occupancy.
func (s *state) snapshot() (count int, windowStart, lastRequest time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.windowStart, s.lastRequest
}

// ServiceStats is a point-in-time view of one service's limiter.
type ServiceStats struct {
	Requests         int64     `json:"requests"`
	Waits            int64     `json:"waits"`
	RequestsInWindow int       `json:"requests_in_window"`
	WindowStart      time.Time `json:"window_start"`
	LastRequest      time.Time `json:"last_request"`
	Degraded         bool      `json:"degraded"`
}
