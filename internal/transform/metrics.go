package transform

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TransformMetrics holds Prometheus metrics for transformation requests.
type TransformMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	payloadViolationsTotal *prometheus.CounterVec
	stepErrorsTotal        prometheus.Counter
}

var (
	transformMetricsInstance *TransformMetrics
	transformMetricsOnce     sync.Once
)

// GetTransformMetrics returns the singleton transform metrics instance.
func GetTransformMetrics() *TransformMetrics {
	transformMetricsOnce.Do(func() {
		transformMetricsInstance = newTransformMetrics()
	})
	return transformMetricsInstance
}

// MustRegister registers all transform metric collectors with the given
// Prometheus registry. promauto registers metrics with the default global
// registry, but the service serves /metrics from a custom registry.
// Calling MustRegister bridges the two so transform metrics appear on the
// service's metrics endpoint.
func (m *TransformMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.payloadViolationsTotal,
		m.stepErrorsTotal,
	)
}

// Init pre-initializes common label combinations with zero values so that
// metrics appear in /metrics output immediately after startup. Prometheus
// *Vec types only emit metric lines after WithLabelValues() is called at
// least once. This method is idempotent and safe to call multiple times.
func (m *TransformMetrics) Init() {
	for _, engine := range []string{"direct", "router", "pipeline"} {
		m.requestDuration.WithLabelValues(engine)
		for _, result := range []string{"success", "error"} {
			m.requestsTotal.WithLabelValues(engine, result)
		}
	}
	for _, direction := range []string{"input", "output"} {
		m.payloadViolationsTotal.WithLabelValues(direction)
	}
}

func newTransformMetrics() *TransformMetrics {
	return &TransformMetrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "transform",
				Name:      "requests_total",
				Help: "Total number of " +
					"transformation requests",
			},
			[]string{"engine", "result"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "canonmorph",
				Subsystem: "transform",
				Name: "request_duration" +
					"_seconds",
				Help: "Duration of transformation " +
					"requests",
				Buckets: []float64{
					.0005, .001, .005, .01,
					.05, .1, .5, 1, 5,
				},
			},
			[]string{"engine"},
		),
		payloadViolationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "transform",
				Name: "payload_violations" +
					"_total",
				Help: "Total number of documents rejected " +
					"by bound schema validation",
			},
			[]string{"direction"},
		),
		stepErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "transform",
				Name:      "step_errors_total",
				Help: "Total number of tolerated pipeline step " +
					"failures surfaced to callers",
			},
		),
	}
}
