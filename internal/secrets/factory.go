package secrets

import (
	"context"
	"fmt"

	"github.com/canonmorph/canonmorph/internal/config"
	"github.com/canonmorph/canonmorph/internal/observability"
)

// NewProviderFromConfig creates a secrets provider from service config.
// Provider "none" (or an empty provider) returns a nil Provider and no
// error; the caller skips secret resolution entirely.
func NewProviderFromConfig(ctx context.Context, cfg *config.SecretsConfig, logger observability.Logger) (Provider, error) {
	if cfg == nil {
		return nil, nil
	}

	switch ProviderType(cfg.Provider) {
	case ProviderTypeNone, "":
		return nil, nil

	case ProviderTypeEnv:
		return NewEnvProvider(&EnvProviderConfig{
			Prefix: cfg.EnvPrefix,
			Logger: logger,
		})

	case ProviderTypeVault:
		return NewVaultProvider(ctx, &VaultProviderConfig{
			Address:   cfg.Vault.Address,
			Token:     cfg.Vault.Token,
			MountPath: cfg.Vault.MountPath,
			Timeout:   cfg.Vault.Timeout.Duration(),
			Logger:    logger,
		})

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderType, cfg.Provider)
	}
}
