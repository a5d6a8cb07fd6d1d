package health

import (
	"context"
	"fmt"

	"github.com/canonmorph/canonmorph/internal/catalog"
	"github.com/canonmorph/canonmorph/internal/storage"
)

// PostgresCheck creates a health check that pings the database pool.
func PostgresCheck(name string, pool storage.Pool) *HealthCheckFunc {
	return NewHealthCheckFunc(name, func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("database pool is nil")
		}
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return nil
	})
}

// CatalogCheck creates a health check that pings the transformation
// catalog backend.
func CatalogCheck(name string, store catalog.Store) *HealthCheckFunc {
	return NewHealthCheckFunc(name, func(ctx context.Context) error {
		if store == nil {
			return fmt.Errorf("catalog store is nil")
		}
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("catalog ping failed: %w", err)
		}
		return nil
	})
}
