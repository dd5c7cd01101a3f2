package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend (redis, file, fixture)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statproxy_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statproxy_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheErrors tracks backend operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statproxy_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear"
	)

	// CacheSets tracks cache writes by resource category
	CacheSets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statproxy_cache_sets_total",
			Help: "Total number of cache writes by category",
		},
		[]string{"category"},
	)

	// CacheInvalidations tracks explicit invalidations
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statproxy_cache_invalidations_total",
			Help: "Total number of explicit cache invalidations",
		},
	)
)
