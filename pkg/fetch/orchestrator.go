// Package fetch coordinates cache-aside loads: at most one in-flight
// fetch per resource key, queued/ready signaling for long-running loads,
// and write-through of results into the cache service.
//
// The orchestrator never retries a failed job. A failed fetch is reported
// to all current subscribers, surfaced once to the next async poller, and
// then discarded, so the following cache miss starts a fresh attempt;
// retry policy lives inside the HTTP client.
package fetch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/statwatch/stats-proxy/pkg/cache"
)

// DefaultJobTimeout bounds a background fetch job. Roughly the retry
// budget times the worst-case per-attempt backoff, so a stuck upstream
// cannot leave a resource perpetually queued.
const DefaultJobTimeout = 2 * time.Minute

// LoaderFunc loads a resource from its source of truth (live upstream or
// fixture). The returned payload must be JSON.
type LoaderFunc func(ctx context.Context) (json.RawMessage, error)

// Request describes one resource fetch.
type Request struct {
	// Key is the resource key, used for caching and in-flight dedup.
	Key cache.Key

	// Loader loads the resource on a cache miss.
	Loader LoaderFunc

	// TTL bounds the cached result's life.
	TTL time.Duration

	// FixtureFile, when set, is used for fixture seeding on reads and
	// write-through recording on loads.
	FixtureFile string

	// Force bypasses the cache read and invalidates before fetching.
	Force bool
}

// QueueStats is a snapshot of orchestrator counters.
type QueueStats struct {
	InFlight  int      `json:"in_flight"`
	Keys      []string `json:"keys,omitempty"`
	Started   int64    `json:"started"`
	Joined    int64    `json:"joined"`
	Completed int64    `json:"completed"`
	Failed    int64    `json:"failed"`
}

// Orchestrator deduplicates concurrent fetches per resource key and feeds
// results through the cache service.
type Orchestrator struct {
	cache      *cache.Service
	jobTimeout time.Duration
	logger     zerolog.Logger

	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]time.Time
	failures map[string]error

	started   int64
	joined    int64
	completed int64
	failed    int64
}

// New creates an orchestrator. jobTimeout <= 0 selects DefaultJobTimeout.
func New(cacheService *cache.Service, jobTimeout time.Duration, logger zerolog.Logger) *Orchestrator {
	if cacheService == nil {
		panic("cache service cannot be nil")
	}
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	return &Orchestrator{
		cache:      cacheService,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// Fetch resolves a resource synchronously: cache hit, joined in-flight
// job, or a fresh load. All concurrent callers for the same key share one
// upstream load and receive the same value. The caller's context only
// bounds its own wait; an abandoned wait does not cancel the job.
func (o *Orchestrator) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if value, ok := o.checkCache(ctx, req); ok {
		return value, nil
	}

	ch := o.start(req)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			// The caller gets the error directly; drop the recorded
			// failure so async pollers don't see it twice.
			o.takeFailure(req.Key.String())
			return nil, res.Err
		}
		if res.Shared {
			o.mu.Lock()
			o.joined++
			o.mu.Unlock()
			jobsJoined.Inc()
		}
		return res.Val.(json.RawMessage), nil
	}
}

// FetchAsync resolves a resource without blocking: a cache hit returns
// (value, true, nil); a miss triggers a background fetch and returns
// (nil, false, nil), the "queued" signal. The job is owned by the
// orchestrator and completes regardless of caller interest, so a later
// poll finds the cache populated.
//
// When the previous job for the key failed, the failure is surfaced
// exactly once as (nil, false, err) without starting a new job; the poll
// after that starts a fresh attempt. A Force request clears the recorded
// failure and fetches immediately.
func (o *Orchestrator) FetchAsync(req Request) (json.RawMessage, bool, error) {
	if value, ok := o.checkCache(context.Background(), req); ok {
		return value, true, nil
	}

	// A forced refetch discards any recorded failure instead of surfacing
	// it; the caller asked for a fresh attempt, not last round's error.
	if err := o.takeFailure(req.Key.String()); err != nil && !req.Force {
		return nil, false, err
	}

	ch := o.start(req)
	go func() {
		// Drain so the singleflight result is observed; failures are
		// already logged and counted by the job itself.
		<-ch
	}()
	return nil, false, nil
}

// takeFailure consumes the recorded failure for key, if any.
func (o *Orchestrator) takeFailure(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err, ok := o.failures[key]
	if !ok {
		return nil
	}
	delete(o.failures, key)
	return err
}

// InFlight reports whether a fetch for key is currently running.
func (o *Orchestrator) InFlight(key cache.Key) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[key.String()]
	return ok
}

// checkCache performs the cache-aside read, honoring Force by
// invalidating entry and fixture before the load.
func (o *Orchestrator) checkCache(ctx context.Context, req Request) (json.RawMessage, bool) {
	if req.Force {
		if err := o.cache.Invalidate(ctx, req.Key, req.FixtureFile); err != nil {
			o.logger.Warn().Err(err).Str("key", req.Key.String()).Msg("Force invalidation failed")
		}
		return nil, false
	}
	return o.cache.Get(ctx, req.Key, cache.GetOptions{FixtureFile: req.FixtureFile})
}

// start launches (or joins) the single in-flight job for the key.
func (o *Orchestrator) start(req Request) <-chan singleflight.Result {
	key := req.Key.String()
	return o.group.DoChan(key, func() (any, error) {
		o.track(key, true)
		defer o.track(key, false)

		// The job owns its own lifetime: detached from any request
		// context, bounded so a stuck upstream cannot pin the key.
		jobCtx, cancel := context.WithTimeout(context.Background(), o.jobTimeout)
		defer cancel()

		start := time.Now()
		value, err := req.Loader(jobCtx)
		if err != nil {
			o.mu.Lock()
			o.failed++
			if o.failures == nil {
				o.failures = make(map[string]error)
			}
			o.failures[key] = err
			o.mu.Unlock()
			jobsFailed.Inc()
			o.logger.Warn().Err(err).
				Str("key", key).
				Dur("duration", time.Since(start)).
				Msg("Fetch job failed")
			return nil, err
		}

		o.cache.Set(jobCtx, req.Key.Resource, req.Key, value, req.TTL, req.FixtureFile)

		o.mu.Lock()
		o.completed++
		o.mu.Unlock()
		jobsCompleted.Inc()
		o.logger.Debug().
			Str("key", key).
			Dur("duration", time.Since(start)).
			Int("bytes", len(value)).
			Msg("Fetch job completed")
		return value, nil
	})
}

// track records job start/end in the in-flight table.
func (o *Orchestrator) track(key string, starting bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if starting {
		if o.inflight == nil {
			o.inflight = make(map[string]time.Time)
		}
		o.inflight[key] = time.Now()
		o.started++
		jobsStarted.Inc()
		jobsInFlight.Inc()
		return
	}
	delete(o.inflight, key)
	jobsInFlight.Dec()
}

// Stats returns a snapshot of queue counters.
func (o *Orchestrator) Stats() QueueStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	keys := make([]string, 0, len(o.inflight))
	for k := range o.inflight {
		keys = append(keys, k)
	}
	return QueueStats{
		InFlight:  len(o.inflight),
		Keys:      keys,
		Started:   o.started,
		Joined:    o.joined,
		Completed: o.completed,
		Failed:    o.failed,
	}
}
