package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statproxy_ratelimit_requests_total",
		Help: "Total requests granted clearance by service",
	}, []string{"service"})

	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statproxy_ratelimit_waits_total",
		Help: "Total times a caller had to wait for clearance by service",
	}, []string{"service"})

	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statproxy_ratelimit_wait_seconds",
		Help:    "Time spent waiting for clearance by service",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"service"})

	rateLimitDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statproxy_ratelimit_degraded_total",
		Help: "Total clearances served from local fallback state because Redis was unreachable",
	}, []string{"service"})
)
