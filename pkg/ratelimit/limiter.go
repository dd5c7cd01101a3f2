package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Limiter gates outbound requests per upstream service. Every service has
// independent, non-shared state and independent configured limits.
type Limiter struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu       sync.Mutex
	services map[string]*state
}

// NewLimiter creates a limiter with per-service limits. redisClient may be
// nil, in which case state is purely in-process. Services not present in
// limits are registered lazily with DefaultLimits on first use.
func NewLimiter(redisClient *redis.Client, limits map[string]Limits, logger zerolog.Logger) *Limiter {
	l := &Limiter{
		redis:    redisClient,
		logger:   logger,
		services: make(map[string]*state, len(limits)),
	}
	for service, lim := range limits {
		l.services[service] = &state{limits: lim}
	}
	return l
}

// serviceState returns the state for a service, registering it with
// default limits if unknown.
func (l *Limiter) serviceState(service string) *state {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.services[service]
	if !ok {
		l.logger.Warn().Str("service", service).Msg("Unknown service, registering default rate limits")
		st = &state{limits: DefaultLimits()}
		l.services[service] = st
	}
	return st
}

// Wait suspends the caller until the service may issue its next request,
// then commits the request. The wait honors both the minimum inter-request
// delay and the sliding-window cap. Returns early with the context error
// on cancellation.
func (l *Limiter) Wait(ctx context.Context, service string) error {
	st := l.serviceState(service)
	start := time.Now()
	waited := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := l.reserve(ctx, service, st)
		if wait <= 0 {
			st.requests.Add(1)
			rateLimitRequestsTotal.WithLabelValues(service).Inc()
			if waited {
				st.waits.Add(1)
				rateLimitWaitsTotal.WithLabelValues(service).Inc()
				rateLimitWaitSeconds.WithLabelValues(service).Observe(time.Since(start).Seconds())
				l.logger.Debug().
					Str("service", service).
					Dur("wait", time.Since(start)).
					Msg("Clearance granted after wait")
			}
			return nil
		}

		waited = true
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve performs one compute-then-commit attempt, preferring the shared
// Redis state and falling back to local state when Redis fails.
func (l *Limiter) reserve(ctx context.Context, service string, st *state) time.Duration {
	now := time.Now()

	if l.redis != nil {
		wait, err := reserveRemote(ctx, l.redis, service, st.limits, now)
		if err == nil {
			if st.degraded.Swap(false) {
				l.logger.Info().Str("service", service).Msg("Rate limit state back on Redis")
			}
			if wait <= 0 {
				// Mirror the commit locally so the fallback state stays warm.
				st.mu.Lock()
				if now.Sub(st.windowStart) >= st.limits.Window {
					st.windowStart = now
					st.count = 0
				}
				st.lastRequest = now
				st.count++
				st.mu.Unlock()
			}
			return wait
		}

		if !st.degraded.Swap(true) {
			l.logger.Warn().Err(err).
				Str("service", service).
				Msg("Rate limit Redis unreachable, degrading to in-process state")
		}
		rateLimitDegradedTotal.WithLabelValues(service).Inc()
	}

	return st.reserve(now)
}

// Healthy reports whether the shared Redis backing store is reachable.
// An unhealthy limiter keeps serving from in-process fallback state.
func (l *Limiter) Healthy(ctx context.Context) bool {
	if l.redis == nil {
		return false
	}
	return l.redis.Ping(ctx).Err() == nil
}

// Stats returns a per-service snapshot of limiter counters.
func (l *Limiter) Stats() map[string]ServiceStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := make(map[string]ServiceStats, len(l.services))
	for service, st := range l.services {
		count, windowStart, lastRequest := st.snapshot()
		stats[service] = ServiceStats{
			Requests:         st.requests.Load(),
			Waits:            st.waits.Load(),
			RequestsInWindow: count,
			WindowStart:      windowStart,
			LastRequest:      lastRequest,
			Degraded:         st.degraded.Load(),
		}
	}
	return stats
}
