package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics holds Prometheus metrics for engine operations.
type EngineMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	stepErrorsTotal   prometheus.Counter
}

var (
	engineMetricsInstance *EngineMetrics
	engineMetricsOnce     sync.Once
)

// GetEngineMetrics returns the singleton engine metrics instance.
func GetEngineMetrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetricsInstance = newEngineMetrics()
	})
	return engineMetricsInstance
}

// MustRegister registers all engine metric collectors with the given
// Prometheus registry. promauto registers metrics with the default global
// registry, but the service serves /metrics from a custom registry.
// Calling MustRegister bridges the two so engine metrics appear on the
// service's metrics endpoint.
func (m *EngineMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.stepErrorsTotal,
	)
}

// Init pre-initializes common label combinations with zero values so that
// metrics appear in /metrics output immediately after startup. Prometheus
// *Vec types only emit metric lines after WithLabelValues() is called at
// least once. This method is idempotent and safe to call multiple times.
func (m *EngineMetrics) Init() {
	for _, engine := range []string{"direct", "router", "pipeline"} {
		for _, operation := range []string{"transform", "validate"} {
			m.operationDuration.WithLabelValues(engine, operation)
			for _, result := range []string{"success", "error"} {
				m.operationsTotal.WithLabelValues(engine, operation, result)
			}
		}
	}
}

func newEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		operationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "engine",
				Name:      "operations_total",
				Help: "Total number of " +
					"engine operations",
			},
			[]string{"engine", "operation", "result"},
		),
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "canonmorph",
				Subsystem: "engine",
				Name: "operation_duration" +
					"_seconds",
				Help: "Duration of engine " +
					"operations",
				Buckets: []float64{
					.0001, .0005, .001, .005,
					.01, .05, .1, .5, 1,
				},
			},
			[]string{"engine", "operation"},
		),
		stepErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "engine",
				Name:      "step_errors_total",
				Help: "Total number of pipeline step " +
					"failures skipped by continueOnError",
			},
		),
	}
}
