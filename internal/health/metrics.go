package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthMetrics holds Prometheus metrics for health checks.
type HealthMetrics struct {
	probesTotal *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
}

var (
	healthMetricsInstance *HealthMetrics
	healthMetricsOnce     sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *HealthMetrics {
	healthMetricsOnce.Do(func() {
		healthMetricsInstance = newHealthMetrics()
	})
	return healthMetricsInstance
}

// MustRegister registers all health metric collectors with the given
// Prometheus registry. promauto registers metrics with the default global
// registry, but the service serves /metrics from a custom registry.
// Calling MustRegister bridges the two so health metrics appear on the
// service's metrics endpoint.
func (m *HealthMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.probesTotal,
		m.checkStatus,
	)
}

// Init pre-initializes common label combinations with zero values so that
// metrics appear in /metrics output immediately after startup. Prometheus
// *Vec types only emit metric lines after WithLabelValues() is called at
// least once. This method is idempotent and safe to call multiple times.
func (m *HealthMetrics) Init() {
	for _, probe := range []string{"liveness", "readiness", "health"} {
		m.probesTotal.WithLabelValues(probe)
	}
}

// RecordProbe records a served probe request.
func (m *HealthMetrics) RecordProbe(probe string) {
	m.probesTotal.WithLabelValues(probe).Inc()
}

// RecordCheck records the outcome of a named dependency check.
func (m *HealthMetrics) RecordCheck(check string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.checkStatus.WithLabelValues(check).Set(value)
}

func newHealthMetrics() *HealthMetrics {
	return &HealthMetrics{
		probesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "health",
				Name:      "probes_total",
				Help: "Total number of " +
					"health probes served",
			},
			[]string{"probe"},
		),
		checkStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "canonmorph",
				Subsystem: "health",
				Name:      "check_status",
				Help: "Current dependency check " +
					"status (1=healthy, 0=unhealthy)",
			},
			[]string{"check"},
		),
	}
}
