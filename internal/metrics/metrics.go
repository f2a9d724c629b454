// Package metrics provides Prometheus metrics for the analysis API and the job poller.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillpiler_analyses_started_total",
			Help: "Total number of analysis jobs accepted",
		},
	)
	AnalysesFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpiler_analyses_finished_total",
			Help: "Total number of analysis jobs that reached a terminal status",
		},
		[]string{"status"},
	)
	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillpiler_analysis_duration_seconds",
			Help:    "Time from job start to terminal status",
			Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)
	AnalysesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillpiler_analyses_in_flight",
			Help: "Number of analysis jobs currently running",
		},
	)
	GitHubRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpiler_github_requests_total",
			Help: "Total number of GitHub API requests",
		},
		[]string{"endpoint", "status"},
	)
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpiler_cache_lookups_total",
			Help: "GitHub response cache lookups",
		},
		[]string{"result"},
	)
	JobsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillpiler_jobs_purged_total",
			Help: "Total number of expired jobs removed by cleanup",
		},
	)
	PollAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillpiler_poll_attempts_total",
			Help: "Total number of job status checks issued by the poller",
		},
	)
	PollSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpiler_poll_sessions_total",
			Help: "Polling sessions by terminal outcome",
		},
		[]string{"outcome"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpiler_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillpiler_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordAnalysisStarted() {
	AnalysesStarted.Inc()
	AnalysesInFlight.Inc()
}

func RecordAnalysisFinished(status string, duration time.Duration) {
	AnalysesInFlight.Dec()
	AnalysesFinished.WithLabelValues(status).Inc()
	AnalysisDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordGitHubRequest(endpoint, status string) {
	GitHubRequests.WithLabelValues(endpoint, status).Inc()
}

func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

func RecordJobsPurged(n int) {
	JobsPurged.Add(float64(n))
}

func RecordPollAttempt() {
	PollAttempts.Inc()
}

func RecordPollOutcome(outcome string) {
	PollSessions.WithLabelValues(outcome).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
