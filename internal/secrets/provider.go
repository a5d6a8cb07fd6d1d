// Package secrets provides a unified interface for resolving sensitive
// configuration values, with environment variable and HashiCorp Vault
// backends.
package secrets

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProviderType represents the type of secrets provider.
type ProviderType string

const (
	// ProviderTypeNone disables secret resolution.
	ProviderTypeNone ProviderType = "none"
	// ProviderTypeEnv uses environment variables as the backend.
	ProviderTypeEnv ProviderType = "env"
	// ProviderTypeVault uses HashiCorp Vault as the backend.
	ProviderTypeVault ProviderType = "vault"
)

// Common errors for secrets providers.
var (
	// ErrSecretNotFound is returned when a secret is not found.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrProviderNotConfigured is returned when the provider is not properly configured.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrInvalidPath is returned when the secret path is invalid.
	ErrInvalidPath = errors.New("invalid secret path")
	// ErrInvalidProviderType is returned when an unknown provider type is specified.
	ErrInvalidProviderType = errors.New("invalid provider type")
)

// Secret represents a secret with key-value data.
type Secret struct {
	// Name is the path the secret was fetched from.
	Name string
	// Data contains the secret key-value pairs.
	Data map[string][]byte
}

// GetString returns a string value from the secret data.
func (s *Secret) GetString(key string) (string, bool) {
	if s == nil || s.Data == nil {
		return "", false
	}
	v, ok := s.Data[key]
	if !ok {
		return "", false
	}
	return string(v), true
}

// Provider is the interface for secrets providers.
type Provider interface {
	// Type returns the provider type.
	Type() ProviderType

	// GetSecret retrieves a secret by path. Path format depends on the
	// provider:
	//   - env:   "SECRET_NAME" maps to an env var with the configured prefix
	//   - vault: "path/to/secret" under the KV v2 mount
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// HealthCheck checks provider connectivity.
	HealthCheck(ctx context.Context) error

	// Close cleans up provider resources.
	Close() error
}

// DefaultKey is the data key used when a secret reference does not name
// one explicitly.
const DefaultKey = "value"

// ResolveString fetches a secret reference and returns the string value.
// A reference has the form "path" or "path#key"; the default key is
// "value".
func ResolveString(ctx context.Context, p Provider, ref string) (string, error) {
	if p == nil {
		return "", ErrProviderNotConfigured
	}

	path := ref
	key := DefaultKey
	if idx := strings.LastIndex(ref, "#"); idx >= 0 {
		path = ref[:idx]
		key = ref[idx+1:]
	}
	if path == "" || key == "" {
		return "", ErrInvalidPath
	}

	secret, err := p.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}

	value, ok := secret.GetString(key)
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// SecretsMetrics holds Prometheus metrics for secret resolution.
type SecretsMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

var (
	secretsMetricsInstance *SecretsMetrics
	secretsMetricsOnce     sync.Once
)

// GetSecretsMetrics returns the singleton secrets metrics instance.
func GetSecretsMetrics() *SecretsMetrics {
	secretsMetricsOnce.Do(func() {
		secretsMetricsInstance = newSecretsMetrics()
	})
	return secretsMetricsInstance
}

// MustRegister registers all secrets metric collectors with the given
// Prometheus registry. promauto registers metrics with the default global
// registry, but the service serves /metrics from a custom registry.
// Calling MustRegister bridges the two so secrets metrics appear on the
// service's metrics endpoint.
func (m *SecretsMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
	)
}

// Init pre-initializes common label combinations with zero values so that
// metrics appear in /metrics output immediately after startup. Prometheus
// *Vec types only emit metric lines after WithLabelValues() is called at
// least once. This method is idempotent and safe to call multiple times.
func (m *SecretsMetrics) Init() {
	for _, provider := range []string{string(ProviderTypeEnv), string(ProviderTypeVault)} {
		m.operationDuration.WithLabelValues(provider, "get")
		for _, result := range []string{"success", "error"} {
			m.operationsTotal.WithLabelValues(provider, "get", result)
		}
	}
}

// RecordOperation records a secrets provider operation.
func (m *SecretsMetrics) RecordOperation(provider ProviderType, operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operationsTotal.WithLabelValues(string(provider), operation, result).Inc()
	m.operationDuration.WithLabelValues(string(provider), operation).Observe(duration.Seconds())
}

func newSecretsMetrics() *SecretsMetrics {
	return &SecretsMetrics{
		operationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "canonmorph",
				Subsystem: "secrets",
				Name:      "operations_total",
				Help: "Total number of secrets " +
					"provider operations",
			},
			[]string{"provider", "operation", "result"},
		),
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "canonmorph",
				Subsystem: "secrets",
				Name: "operation_duration" +
					"_seconds",
				Help: "Duration of secrets provider " +
					"operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
	}
}
