package catalog

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CatalogMetrics holds Prometheus metrics for catalog operations.
type CatalogMetrics struct {
	lookupsTotal   *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec
}

var (
	catalogMetricsInstance *CatalogMetrics
	catalogMetricsOnce     sync.Once
)

// GetCatalogMetrics returns the singleton catalog metrics instance.
func GetCatalogMetrics() *CatalogMetrics {
	catalogMetricsOnce.Do(func() {
		catalogMetricsInstance = newCatalogMetrics()
	})
	return catalogMetricsInstance
}

// MustRegister registers all catalog metric collectors with the given
// Prometheus registry. promauto registers metrics with the default global
// registry, but the service serves /metrics from a custom registry.
// Calling MustRegister bridges the two so catalog metrics appear on the
// service's metrics endpoint.
func (m *CatalogMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.lookupsTotal,
		m.lookupDuration,
		m.breakerState,
	)
}

// Init pre-initializes common label combinations with zero values so that
// metrics appear in /metrics output immediately after startup. Prometheus
// *Vec types only emit metric lines after WithLabelValues() is called at
// least once. This method is idempotent and safe to call multiple times.
func (m *CatalogMetrics) Init() {
	for _, backend := range []string{"memory", "redis"} {
		m.lookupDuration.WithLabelValues(backend)
		for _, result := range []string{"hit", "miss", "error"} {
			m.lookupsTotal.WithLabelValues(backend, result)
		}
	}
	m.breakerState.WithLabelValues("catalog")
}

func newCatalogMetrics() *CatalogMetrics {
	return &CatalogMetrics{
		lookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "catalog",
				Name:      "lookups_total",
				Help: "Total number of " +
					"catalog lookups",
			},
			[]string{"backend", "result"},
		),
		lookupDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "canonmorph",
				Subsystem: "catalog",
				Name: "lookup_duration" +
					"_seconds",
				Help: "Duration of catalog " +
					"lookups",
				Buckets: []float64{
					.0001, .0005, .001, .005,
					.01, .025, .05, .1,
				},
			},
			[]string{"backend"},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "canonmorph",
				Subsystem: "catalog",
				Name:      "breaker_state",
				Help: "Circuit breaker state " +
					"(0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}
}
