// Package metrics exposes Prometheus collectors for countsort.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sources label where a sort was requested from.
const (
	SourceHTTP = "http"
	SourceJob  = "job"
)

var (
	sortsTotal                 *prometheus.CounterVec
	sortElements               *prometheus.HistogramVec
	sortDurationSeconds        *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	jobsTotal                  *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	queueDepth                 prometheus.Gauge
	rateLimitedTotal           prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sortsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "countsort_sorts_total",
				Help: "Total number of sort invocations, labeled by source and outcome.",
			},
			[]string{"source", "status"},
		)

		sortElements = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "countsort_sort_elements",
				Help:    "Histogram of sequence lengths passed to the sort routine.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
			[]string{"source"},
		)

		sortDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "countsort_sort_duration_seconds",
				Help:    "Histogram of time spent inside the sort routine.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 10, 7),
			},
			[]string{"source"},
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
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "countsort_jobs_total",
				Help: "Total number of asynchronous jobs finished, labeled by status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "countsort_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "countsort_queue_depth",
				Help: "Number of jobs waiting in the queue.",
			},
		)

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "countsort_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSort records one sort invocation.
func ObserveSort(source string, elements int, duration time.Duration, err error) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	sortsTotal.WithLabelValues(source, status).Inc()
	if err == nil {
		sortElements.WithLabelValues(source).Observe(float64(elements))
		sortDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// SetQueueDepth records the current queue backlog.
func SetQueueDepth(n int) {
	Init()
	queueDepth.Set(float64(n))
}

// ObserveRateLimited counts a request rejected by the rate limiter.
func ObserveRateLimited() {
	Init()
	rateLimitedTotal.Inc()
}
