package catalog

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCatalogMetrics_Singleton(t *testing.T) {
	m1 := GetCatalogMetrics()
	m2 := GetCatalogMetrics()

	require.NotNil(t, m1)
	assert.Same(t, m1, m2, "should return same instance")
}

func TestGetCatalogMetrics_AllFieldsInitialized(t *testing.T) {
	m := GetCatalogMetrics()

	require.NotNil(t, m)
	assert.NotNil(t, m.lookupsTotal, "lookupsTotal should be initialized")
	assert.NotNil(t, m.lookupDuration, "lookupDuration should be initialized")
	assert.NotNil(t, m.breakerState, "breakerState should be initialized")
}

func TestCatalogMetrics_RecordLookup(t *testing.T) {
	m := GetCatalogMetrics()

	before := testutil.ToFloat64(m.lookupsTotal.WithLabelValues("metrics-test", "hit"))
	m.lookupsTotal.WithLabelValues("metrics-test", "hit").Inc()
	after := testutil.ToFloat64(m.lookupsTotal.WithLabelValues("metrics-test", "hit"))

	assert.Equal(t, before+1, after, "lookupsTotal should increment by 1")
}

func TestCatalogMetrics_MustRegister(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := GetCatalogMetrics()
	require.NotPanics(t, func() {
		m.MustRegister(registry)
	})

	m.Init()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["canonmorph_catalog_lookups_total"])
	assert.True(t, names["canonmorph_catalog_lookup_duration_seconds"])
	assert.True(t, names["canonmorph_catalog_breaker_state"])
}

func TestCatalogMetrics_Init_Idempotent(t *testing.T) {
	m := GetCatalogMetrics()

	assert.NotPanics(t, func() {
		m.Init()
		m.Init()
	})
}
