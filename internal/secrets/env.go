package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/canonmorph/canonmorph/internal/observability"
)

// DefaultEnvPrefix is the default prefix for environment variable secrets.
const DefaultEnvPrefix = "CANONMORPH_SECRET_"

// EnvProviderConfig holds configuration for the environment variable
// secrets provider.
type EnvProviderConfig struct {
	// Prefix is the prefix for environment variables.
	// Default: "CANONMORPH_SECRET_"
	Prefix string
	// Logger is the logger instance.
	Logger observability.Logger
}

// EnvProvider implements the Provider interface using environment
// variables. Path "SECRET_NAME" maps to env var "{PREFIX}SECRET_NAME".
// A JSON-encoded value is split into per-key data; any other value is
// stored under the key "value".
type EnvProvider struct {
	prefix string
	logger observability.Logger
}

// NewEnvProvider creates a new environment variable secrets provider.
func NewEnvProvider(cfg *EnvProviderConfig) (*EnvProvider, error) {
	if cfg == nil {
		cfg = &EnvProviderConfig{}
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &EnvProvider{
		prefix: prefix,
		logger: logger,
	}, nil
}

// Type returns the provider type.
func (p *EnvProvider) Type() ProviderType {
	return ProviderTypeEnv
}

// normalizeEnvName converts a secret path to an environment variable name:
// uppercase, with dashes, dots, and slashes replaced by underscores, and
// the configured prefix prepended.
func (p *EnvProvider) normalizeEnvName(path string) string {
	name := strings.ToUpper(path)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "/", "_")

	return p.prefix + name
}

// GetSecret retrieves a secret from environment variables.
func (p *EnvProvider) GetSecret(ctx context.Context, path string) (*Secret, error) {
	start := time.Now()
	var err error
	defer func() {
		GetSecretsMetrics().RecordOperation(p.Type(), "get", time.Since(start), err)
	}()

	if path == "" {
		err = ErrInvalidPath
		return nil, err
	}

	envName := p.normalizeEnvName(path)

	value, exists := os.LookupEnv(envName)
	if !exists {
		p.logger.Debug("environment variable not found",
			observability.String("envVar", envName),
		)
		err = fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, envName)
		return nil, err
	}

	return &Secret{
		Name: path,
		Data: parseEnvValue(value),
	}, nil
}

// parseEnvValue splits a JSON object value into per-key data. Anything
// else lands under the default key.
func parseEnvValue(value string) map[string][]byte {
	data := make(map[string][]byte)

	var jsonData map[string]interface{}
	if err := json.Unmarshal([]byte(value), &jsonData); err == nil {
		for k, v := range jsonData {
			switch val := v.(type) {
			case string:
				data[k] = []byte(val)
			default:
				if encoded, err := json.Marshal(val); err == nil {
					data[k] = encoded
				}
			}
		}
		return data
	}

	data[DefaultKey] = []byte(value)
	return data
}

// HealthCheck always succeeds; the process environment is local.
func (p *EnvProvider) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for the environment provider.
func (p *EnvProvider) Close() error {
	return nil
}

// Ensure EnvProvider implements Provider.
var _ Provider = (*EnvProvider)(nil)
