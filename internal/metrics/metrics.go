// Package metrics exposes Prometheus collectors for the crawler service.
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

const namespace = "kbo_crawler"

var (
	crawlsTotal                *prometheus.CounterVec
	crawlDurationSeconds       *prometheus.HistogramVec
	recordsTotal               *prometheus.CounterVec
	skippedRecordsTotal        *prometheus.CounterVec
	defaultedFieldsTotal       *prometheus.CounterVec
	reconcileActionsTotal      *prometheus.CounterVec
	browserSessionsActive      prometheus.Gauge
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crawls_total",
				Help:      "Crawl operations, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "crawl_duration_seconds",
				Help:      "Histogram of crawl latencies, labeled by kind.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"kind"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Raw records extracted, labeled by kind.",
			},
			[]string{"kind"},
		)

		skippedRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_records_total",
				Help:      "Records dropped during extraction or reconciliation, labeled by kind and reason.",
			},
			[]string{"kind", "reason"},
		)

		defaultedFieldsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "defaulted_fields_total",
				Help:      "Kept records whose field fell back to a default, labeled by kind and field.",
			},
			[]string{"kind", "field"},
		)

		reconcileActionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_actions_total",
				Help:      "Reconciliation writes, labeled by entity and action.",
			},
			[]string{"entity", "action"},
		)

		browserSessionsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "browser_sessions_active",
				Help:      "Number of headless browser sessions currently open.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limit_delay_seconds",
				Help:      "Histogram of politeness wait durations.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from rawURL.
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
	return promhttp.Handler()
}

// ObserveCrawl records one finished crawl operation.
func ObserveCrawl(kind, outcome string, duration time.Duration) {
	Init()
	crawlsTotal.WithLabelValues(kind, outcome).Inc()
	crawlDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveRecords adds n extracted records of the given kind.
func ObserveRecords(kind string, n int) {
	Init()
	if n > 0 {
		recordsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveSkip counts one dropped record.
func ObserveSkip(kind, reason string) {
	Init()
	skippedRecordsTotal.WithLabelValues(kind, reason).Inc()
}

// ObserveDefaulted counts one kept record whose field could not be parsed and was defaulted.
func ObserveDefaulted(kind, field string) {
	Init()
	defaultedFieldsTotal.WithLabelValues(kind, field).Inc()
}

// ObserveReconcile counts one reconciliation write.
func ObserveReconcile(entity, action string) {
	Init()
	reconcileActionsTotal.WithLabelValues(entity, action).Inc()
}

// IncBrowserSessions increments the open sessions gauge.
func IncBrowserSessions() {
	Init()
	browserSessionsActive.Inc()
}

// DecBrowserSessions decrements the open sessions gauge.
func DecBrowserSessions() {
	Init()
	browserSessionsActive.Dec()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
