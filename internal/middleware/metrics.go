package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute is the label value used for requests that do not
// match any registered route, ensuring bounded cardinality.
const unmatchedRoute = "unmatched"

// HTTPMetrics holds Prometheus metrics for the HTTP server.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestSize     *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	rateLimitHits   prometheus.Counter
}

var (
	httpMetricsInstance *HTTPMetrics
	httpMetricsOnce     sync.Once
)

// GetHTTPMetrics returns the singleton HTTP metrics instance.
func GetHTTPMetrics() *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		httpMetricsInstance = newHTTPMetrics()
	})
	return httpMetricsInstance
}

// MustRegister registers all HTTP metric collectors with the given
// Prometheus registry. promauto registers metrics with the default global
// registry, but the service serves /metrics from a custom registry.
// Calling MustRegister bridges the two so HTTP metrics appear on the
// service's metrics endpoint.
func (m *HTTPMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestSize,
		m.responseSize,
		m.activeRequests,
		m.rateLimitHits,
	)
}

// Init pre-initializes common label combinations with zero values so that
// metrics appear in /metrics output immediately after startup. Prometheus
// *Vec types only emit metric lines after WithLabelValues() is called at
// least once. This method is idempotent and safe to call multiple times.
func (m *HTTPMetrics) Init() {
	m.requestsTotal.WithLabelValues("GET", unmatchedRoute, "404")
	m.requestDuration.WithLabelValues("GET", unmatchedRoute, "404")
	m.requestSize.WithLabelValues("GET", unmatchedRoute)
	m.responseSize.WithLabelValues("GET", unmatchedRoute, "404")
}

// RecordRateLimitHit records a rejected request. Client IPs stay out of
// the label set to keep cardinality bounded; they belong in logs.
func (m *HTTPMetrics) RecordRateLimitHit() {
	m.rateLimitHits.Inc()
}

func newHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "http",
				Name:      "requests_total",
				Help: "Total number of HTTP " +
					"requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "canonmorph",
				Subsystem: "http",
				Name: "request_duration" +
					"_seconds",
				Help: "HTTP request duration in " +
					"seconds",
				Buckets: []float64{
					.001, .005, .01, .025, .05,
					.1, .25, .5, 1, 2.5, 5, 10,
				},
			},
			[]string{"method", "route", "status"},
		),
		requestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "canonmorph",
				Subsystem: "http",
				Name:      "request_size_bytes",
				Help: "HTTP request size in " +
					"bytes",
				Buckets: prometheus.ExponentialBuckets(
					100, 10, 8,
				),
			},
			[]string{"method", "route"},
		),
		responseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "canonmorph",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help: "HTTP response size in " +
					"bytes",
				Buckets: prometheus.ExponentialBuckets(
					100, 10, 8,
				),
			},
			[]string{"method", "route", "status"},
		),
		activeRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "canonmorph",
				Subsystem: "http",
				Name:      "active_requests",
				Help: "Number of active HTTP " +
					"requests",
			},
		),
		rateLimitHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "http",
				Name:      "rate_limit_hits_total",
				Help: "Total number of rate " +
					"limit hits",
			},
		),
	}
}

// Metrics returns a middleware that records request metrics. The route
// label is the registered route template, not the raw request path, to
// prevent cardinality explosion from dynamic path segments.
func Metrics() gin.HandlerFunc {
	m := GetHTTPMetrics()

	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		m.activeRequests.Inc()

		c.Next()

		m.activeRequests.Dec()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start)

		m.requestsTotal.WithLabelValues(method, route, status).Inc()
		m.requestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
		if c.Request.ContentLength > 0 {
			m.requestSize.WithLabelValues(method, route).Observe(float64(c.Request.ContentLength))
		}
		if size := c.Writer.Size(); size > 0 {
			m.responseSize.WithLabelValues(method, route, status).Observe(float64(size))
		}
	}
}
