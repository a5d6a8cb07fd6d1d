package template

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TemplateMetrics holds Prometheus metrics for template lifecycle
// operations.
type TemplateMetrics struct {
	lifecycleTotal    *prometheus.CounterVec
	lifecycleDuration *prometheus.HistogramVec
}

var (
	templateMetricsInstance *TemplateMetrics
	templateMetricsOnce     sync.Once
)

// GetTemplateMetrics returns the singleton template metrics instance.
func GetTemplateMetrics() *TemplateMetrics {
	templateMetricsOnce.Do(func() {
		templateMetricsInstance = newTemplateMetrics()
	})
	return templateMetricsInstance
}

// MustRegister registers all template metric collectors with the given
// Prometheus registry. promauto registers metrics with the default global
// registry, but the service serves /metrics from a custom registry.
// Calling MustRegister bridges the two so template metrics appear on the
// service's metrics endpoint.
func (m *TemplateMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.lifecycleTotal,
		m.lifecycleDuration,
	)
}

// Init pre-initializes common label combinations with zero values so that
// metrics appear in /metrics output immediately after startup. Prometheus
// *Vec types only emit metric lines after WithLabelValues() is called at
// least once. This method is idempotent and safe to call multiple times.
func (m *TemplateMetrics) Init() {
	for _, operation := range []string{"create", "activate", "deactivate", "delete"} {
		m.lifecycleDuration.WithLabelValues(operation)
		for _, result := range []string{"success", "error"} {
			m.lifecycleTotal.WithLabelValues(operation, result)
		}
	}
}

func newTemplateMetrics() *TemplateMetrics {
	return &TemplateMetrics{
		lifecycleTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "template",
				Name:      "lifecycle_total",
				Help: "Total number of template " +
					"lifecycle operations",
			},
			[]string{"operation", "result"},
		),
		lifecycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "canonmorph",
				Subsystem: "template",
				Name: "lifecycle_duration" +
					"_seconds",
				Help: "Duration of template " +
					"lifecycle operations",
				Buckets: []float64{
					.001, .005, .01, .025,
					.05, .1, .25, .5, 1,
				},
			},
			[]string{"operation"},
		),
	}
}
