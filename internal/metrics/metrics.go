// Package metrics exposes Prometheus collectors for digest runs.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	siteOutcomesTotal          *prometheus.CounterVec
	postingsFoundTotal         *prometheus.CounterVec
	deliveriesTotal            *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	lastRunPostings            prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_fetch_attempts_total",
				Help: "Total number of listing page fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		siteOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_site_outcomes_total",
				Help: "Total number of per-run site results, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		postingsFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_postings_found_total",
				Help: "Total number of matching postings extracted, labeled by site.",
			},
			[]string{"site"},
		)

		deliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_deliveries_total",
				Help: "Total number of digest deliveries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_runs_total",
				Help: "Total number of digest runs, labeled by status.",
			},
			[]string{"status"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "digest_run_duration_seconds",
				Help:    "Histogram of end-to-end digest run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		lastRunPostings = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "digest_last_run_postings",
				Help: "Number of postings found by the most recent run.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "digest_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one fetch attempt. Outcome is "success" or a failure kind.
func ObserveFetchAttempt(site, outcome string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
}

// ObserveSite records the result of one site within a run.
func ObserveSite(site string, failed bool, postings int) {
	Init()
	result := "ok"
	if failed {
		result = "failed"
	}
	siteOutcomesTotal.WithLabelValues(site, result).Inc()
	if postings > 0 {
		postingsFoundTotal.WithLabelValues(site).Add(float64(postings))
	}
}

// ObserveDelivery counts a delivery outcome: sent, skipped or failed.
func ObserveDelivery(outcome string) {
	Init()
	deliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records a finished run.
func ObserveRun(status string, postings int, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
	lastRunPostings.Set(float64(postings))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
