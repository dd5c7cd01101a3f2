// Package metrics documents the Prometheus metrics exported by the proxy.
// Metrics are defined in their owning packages (cache, ratelimit, client,
// fetch) via promauto to keep them close to the code they measure; this
// package is the reference index.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics register automatically via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Cache metrics (pkg/cache):
//   - statproxy_cache_hits_total{backend} (Counter): hits by backend (redis, file, fixture)
//   - statproxy_cache_misses_total (Counter): misses
//   - statproxy_cache_errors_total{operation} (Counter): backend errors
//   - statproxy_cache_sets_total{category} (Counter): writes by resource category
//   - statproxy_cache_invalidations_total (Counter): explicit invalidations
//
// Rate limit metrics (pkg/ratelimit):
//   - statproxy_ratelimit_requests_total{service} (Counter): clearances granted
//   - statproxy_ratelimit_waits_total{service} (Counter): clearances that had to wait
//   - statproxy_ratelimit_wait_seconds{service} (Histogram): time spent waiting
//   - statproxy_ratelimit_degraded_total{service} (Counter): clearances from local fallback
//
// Upstream request metrics (pkg/client):
//   - statproxy_upstream_requests_total{endpoint, status} (Counter)
//   - statproxy_upstream_request_duration_seconds{endpoint} (Histogram)
//   - statproxy_upstream_retries_total{error_class} (Counter)
//   - statproxy_upstream_retry_exhausted_total{error_class} (Counter)
//
// Fetch orchestrator metrics (pkg/fetch):
//   - statproxy_fetch_jobs_started_total (Counter)
//   - statproxy_fetch_jobs_joined_total (Counter)
//   - statproxy_fetch_jobs_completed_total (Counter)
//   - statproxy_fetch_jobs_failed_total (Counter)
//   - statproxy_fetch_jobs_in_flight (Gauge)
//
// Example queries:
//
//	# Cache hit rate
//	sum(rate(statproxy_cache_hits_total[5m])) /
//	(sum(rate(statproxy_cache_hits_total[5m])) + sum(rate(statproxy_cache_misses_total[5m])))
//
//	# Dedup effectiveness
//	rate(statproxy_fetch_jobs_joined_total[5m]) / rate(statproxy_fetch_jobs_started_total[5m])
//
//	# P95 upstream latency
//	histogram_quantile(0.95, rate(statproxy_upstream_request_duration_seconds_bucket[5m]))
