package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FixtureStore is the slice of the fixture loader the Service needs for
// write-through recording, miss seeding and invalidation.
type FixtureStore interface {
	TryLoad(name string) ([]byte, error)
	Record(name string, raw []byte) error
	Remove(name string) error
}

// GetOptions tunes a single read.
type GetOptions struct {
	// TTL, when positive, re-derives freshness from the entry's write
	// time instead of its stored expiry. Callers implementing sliding
	// expiry read with TTL and re-Set on hit.
	TTL time.Duration

	// FixtureFile, when set, is tried as a seed value on a backend miss.
	FixtureFile string
}

// Stats is a point-in-time snapshot of service counters.
type Stats struct {
	Backend       string `json:"backend"`
	Hits          int64  `json:"hits"`
	Misses        int64  `json:"misses"`
	Sets          int64  `json:"sets"`
	Invalidations int64  `json:"invalidations"`
	Errors        int64  `json:"errors"`
}

// Service is the caching facade. It owns entry lifecycle: envelope
// marshaling, lazy expiry, sliding freshness, fixture write-through and
// invalidation. Backend failures on reads degrade to a miss and failures
// on writes are logged and swallowed; the upstream provider remains the
// source of truth.
type Service struct {
	backend  Backend
	fixtures FixtureStore
	logger   zerolog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	invalidations atomic.Int64
	errors        atomic.Int64
}

// NewService creates the cache facade. fixtures may be nil when fixture
// seeding and recording are not needed.
func NewService(backend Backend, fixtures FixtureStore, logger zerolog.Logger) *Service {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	return &Service{
		backend:  backend,
		fixtures: fixtures,
		logger:   logger,
	}
}

// Get returns the cached value for key if a live entry exists.
// Expired entries are deleted lazily and reported as absent. Backend
// errors are counted and reported as a miss.
func (s *Service) Get(ctx context.Context, key Key, opts GetOptions) (json.RawMessage, bool) {
	keyStr := key.String()

	data, err := s.backend.Get(ctx, keyStr)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			CacheErrors.WithLabelValues("get").Inc()
			s.errors.Add(1)
			s.logger.Warn().Err(err).Str("key", keyStr).Msg("Cache backend get failed, treating as miss")
		}
		return s.missWithSeed(ctx, key, opts)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		s.errors.Add(1)
		s.logger.Warn().Err(fmt.Errorf("%w: %v", ErrInvalidEntry, err)).Str("key", keyStr).Msg("Corrupt cache entry, dropping")
		_ = s.backend.Delete(ctx, keyStr)
		return s.missWithSeed(ctx, key, opts)
	}

	stale := entry.Expired()
	if opts.TTL > 0 {
		// Sliding read: trust the write time, not the stored expiry.
		stale = !entry.FreshWithin(opts.TTL)
	}
	if stale {
		_ = s.backend.Delete(ctx, keyStr)
		return s.missWithSeed(ctx, key, opts)
	}

	CacheHits.WithLabelValues(s.backend.Name()).Inc()
	s.hits.Add(1)
	return entry.Value, true
}

// missWithSeed counts a miss, optionally falling back to an on-disk
// fixture as a seed value.
func (s *Service) missWithSeed(ctx context.Context, key Key, opts GetOptions) (json.RawMessage, bool) {
	if s.fixtures != nil && opts.FixtureFile != "" {
		if raw, err := s.fixtures.TryLoad(opts.FixtureFile); err == nil {
			s.logger.Debug().Str("key", key.String()).Str("fixture", opts.FixtureFile).Msg("Seeding cache read from fixture")
			s.Set(ctx, key.Resource, key, raw, opts.TTL, "")
			CacheHits.WithLabelValues("fixture").Inc()
			s.hits.Add(1)
			return raw, true
		}
	}
	CacheMisses.Inc()
	s.misses.Add(1)
	return nil, false
}

// Set stores value under key, always overwriting. A positive ttl bounds
// the entry's life; zero stores without expiry. When fixtureFile is given
// the raw payload is also recorded for mock replay (a no-op unless the
// loader is in recording mode). Backend errors are logged and swallowed.
func (s *Service) Set(ctx context.Context, category string, key Key, value json.RawMessage, ttl time.Duration, fixtureFile string) {
	keyStr := key.String()

	entry := Entry{
		Key:        keyStr,
		Value:      value,
		SourceFile: fixtureFile,
		CachedAt:   time.Now(),
	}
	if ttl > 0 {
		expires := entry.CachedAt.Add(ttl)
		entry.ExpiresAt = &expires
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.errors.Add(1)
		s.logger.Warn().Err(err).Str("key", keyStr).Msg("Failed to marshal cache entry")
		return
	}

	if err := s.backend.Set(ctx, keyStr, data, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.errors.Add(1)
		s.logger.Warn().Err(err).Str("key", keyStr).Msg("Cache write failed, continuing without cache")
		return
	}

	CacheSets.WithLabelValues(category).Inc()
	s.sets.Add(1)

	if s.fixtures != nil && fixtureFile != "" {
		if err := s.fixtures.Record(fixtureFile, value); err != nil {
			s.logger.Warn().Err(err).Str("fixture", fixtureFile).Msg("Fixture record failed")
		}
	}

	s.logger.Debug().Str("key", keyStr).Dur("ttl", ttl).Msg("Cached value")
}

// Invalidate removes the keyed entry and, when fixtureFile is given, its
// on-disk fixture. Both removals are attempted; the first error is
// returned.
func (s *Service) Invalidate(ctx context.Context, key Key, fixtureFile string) error {
	keyStr := key.String()

	err := s.backend.Delete(ctx, keyStr)
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		s.errors.Add(1)
	}

	if s.fixtures != nil && fixtureFile != "" {
		if ferr := s.fixtures.Remove(fixtureFile); ferr != nil && err == nil {
			err = ferr
		}
	}

	CacheInvalidations.Inc()
	s.invalidations.Add(1)
	s.logger.Debug().Str("key", keyStr).Msg("Invalidated cache entry")
	return err
}

// Clear drops all entries. Administrative and destructive; no TTL
// distinction is made.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.backend.Clear(ctx); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		s.errors.Add(1)
		return err
	}
	s.logger.Info().Str("backend", s.backend.Name()).Msg("Cache cleared")
	return nil
}

// Healthy reports backend reachability.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.backend.Ping(ctx) == nil
}

// Stats returns a snapshot of hit/miss counters.
func (s *Service) Stats() Stats {
	return Stats{
		Backend:       s.backend.Name(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Sets:          s.sets.Load(),
		Invalidations: s.invalidations.Load(),
		Errors:        s.errors.Load(),
	}
}
