// Package cache implements the cache-aside data layer for upstream
// sports-statistics responses.
//
// The package is split into dumb key/value backends (Redis, local files)
// and a Service facade that owns entry lifecycle: TTL policy, lazy expiry,
// sliding freshness, fixture write-through and invalidation.
//
// # Basic Usage
//
//	backend := cache.NewRedisBackend(redisClient)
//	svc := cache.NewService(backend, fixtures, logger)
//
//	key := cache.NewKey("opendota", "player", "2345")
//	if value, ok := svc.Get(ctx, key, cache.GetOptions{}); ok {
//		// cache hit
//	}
//
//	svc.Set(ctx, "player", key, payload, time.Hour, key.FixtureFile())
//
// # Failure semantics
//
// Backend errors on Get are counted and treated as a miss; the source of
// truth is always the upstream provider or a fixture. Backend errors on Set
// are logged and swallowed: a lost cache write degrades performance, not
// correctness.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - statproxy_cache_hits_total{backend} - Cache hits
//   - statproxy_cache_misses_total - Cache misses
//   - statproxy_cache_errors_total{operation} - Backend operation errors
//   - statproxy_cache_sets_total{category} - Cache writes by resource category
//   - statproxy_cache_invalidations_total - Explicit invalidations
package cache
