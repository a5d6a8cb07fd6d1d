package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/canonmorph/canonmorph/internal/observability"
)

// VaultProviderConfig holds configuration for the Vault secrets provider.
type VaultProviderConfig struct {
	// Address is the Vault server address.
	Address string
	// Token is the Vault token for token auth.
	Token string
	// MountPath is the KV v2 secrets engine mount point. Default: "secret".
	MountPath string
	// Timeout is the request timeout. Default: 30s.
	Timeout time.Duration
	// Logger is the logger instance.
	Logger observability.Logger
}

// VaultProvider implements the Provider interface over the KV v2 secrets
// engine of a HashiCorp Vault server.
type VaultProvider struct {
	client    *vaultapi.Client
	mountPath string
	logger    observability.Logger
}

// NewVaultProvider creates a new Vault secrets provider and verifies
// connectivity with a health check.
func NewVaultProvider(ctx context.Context, cfg *VaultProviderConfig) (*VaultProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrProviderNotConfigured)
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: vault token is required", ErrProviderNotConfigured)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	mountPath := cfg.MountPath
	if mountPath == "" {
		mountPath = "secret"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientConfig := vaultapi.DefaultConfig()
	clientConfig.Address = cfg.Address
	clientConfig.Timeout = timeout

	client, err := vaultapi.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	p := &VaultProvider{
		client:    client,
		mountPath: mountPath,
		logger:    logger,
	}

	if err := p.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("vault health check failed: %w", err)
	}

	logger.Info("connected to vault",
		observability.String("address", cfg.Address),
		observability.String("mountPath", mountPath),
	)

	return p, nil
}

// Type returns the provider type.
func (p *VaultProvider) Type() ProviderType {
	return ProviderTypeVault
}

// GetSecret reads a secret from the KV v2 engine.
func (p *VaultProvider) GetSecret(ctx context.Context, path string) (*Secret, error) {
	start := time.Now()
	var err error
	defer func() {
		GetSecretsMetrics().RecordOperation(p.Type(), "get", time.Since(start), err)
	}()

	if path == "" {
		err = ErrInvalidPath
		return nil, err
	}

	kvSecret, err := p.client.KVv2(p.mountPath).Get(ctx, path)
	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			err = fmt.Errorf("%w: %s", ErrSecretNotFound, path)
			return nil, err
		}
		err = fmt.Errorf("failed to read vault secret %s: %w", path, err)
		return nil, err
	}

	data := make(map[string][]byte, len(kvSecret.Data))
	for k, v := range kvSecret.Data {
		switch val := v.(type) {
		case string:
			data[k] = []byte(val)
		default:
			if encoded, encodeErr := json.Marshal(val); encodeErr == nil {
				data[k] = encoded
			}
		}
	}

	return &Secret{
		Name: path,
		Data: data,
	}, nil
}

// HealthCheck verifies the Vault server is reachable and unsealed.
func (p *VaultProvider) HealthCheck(ctx context.Context) error {
	health, err := p.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault unreachable: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

// Close cleans up provider resources.
func (p *VaultProvider) Close() error {
	return nil
}

// Ensure VaultProvider implements Provider.
var _ Provider = (*VaultProvider)(nil)
