package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statproxy_fetch_jobs_started_total",
		Help: "Total fetch jobs started",
	})

	jobsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statproxy_fetch_jobs_joined_total",
		Help: "Total callers that joined an in-flight fetch instead of starting one",
	})

	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statproxy_fetch_jobs_completed_total",
		Help: "Total fetch jobs completed successfully",
	})

	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statproxy_fetch_jobs_failed_total",
		Help: "Total fetch jobs that terminated with an error",
	})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "statproxy_fetch_jobs_in_flight",
		Help: "Fetch jobs currently in flight",
	})
)
