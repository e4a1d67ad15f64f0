// Package metrics exposes Prometheus collectors for the catalog service.
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
	fetchTotal                 *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	crawlCandidatesTotal       *prometheus.CounterVec
	crawlRunsTotal             *prometheus.CounterVec
	crawlDurationSeconds       prometheus.Histogram
	crawlRecords               prometheus.Gauge
	crawlPauseSeconds          prometheus.Histogram
	rateLimitDelaySeconds      *prometheus.HistogramVec
	cacheOperationsTotal       *prometheus.CounterVec
	cacheBackend               *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_total",
				Help: "Total number of remote documents fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_crawl_candidates_total",
				Help: "Candidates processed by the crawl orchestrator, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_crawl_runs_total",
				Help: "Completed crawl runs, labeled by status.",
			},
			[]string{"status"},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_crawl_duration_seconds",
				Help:    "Wall-clock duration of crawl runs.",
				Buckets: []float64{1, 10, 60, 120, 300, 600, 1200},
			},
		)

		crawlRecords = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_crawl_records",
				Help: "Records produced by the most recent crawl run.",
			},
		)

		crawlPauseSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_crawl_pause_seconds",
				Help:    "Histogram of politeness pauses between detail fetches.",
				Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5},
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"site"},
		)

		cacheOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_cache_operations_total",
				Help: "Cache store operations, labeled by operation and result.",
			},
			[]string{"op", "result"},
		)

		cacheBackend = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_cache_backend",
				Help: "Active cache medium (1 for the medium in use).",
			},
			[]string{"backend"},
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

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
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

// ObserveFetch records one remote document fetch.
func ObserveFetch(rawURL string, status string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveCandidate records the outcome of one crawl candidate.
func ObserveCandidate(outcome string) {
	Init()
	crawlCandidatesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCrawlRun records a finished crawl run.
func ObserveCrawlRun(status string, records int, duration time.Duration) {
	Init()
	crawlRunsTotal.WithLabelValues(status).Inc()
	crawlRecords.Set(float64(records))
	crawlDurationSeconds.Observe(duration.Seconds())
}

// ObservePause records a politeness pause.
func ObservePause(d time.Duration) {
	Init()
	crawlPauseSeconds.Observe(d.Seconds())
}

// ObserveRateLimitDelay records time spent waiting for a rate limit token.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(strings.ToLower(host)).Observe(d.Seconds())
}

// ObserveCacheOp records a cache store operation.
func ObserveCacheOp(op string, ok bool) {
	Init()
	result := "ok"
	if !ok {
		result = "fail"
	}
	cacheOperationsTotal.WithLabelValues(op, result).Inc()
}

// SetCacheBackend marks the active cache medium.
func SetCacheBackend(backend string) {
	Init()
	cacheBackend.Reset()
	cacheBackend.WithLabelValues(backend).Set(1)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
