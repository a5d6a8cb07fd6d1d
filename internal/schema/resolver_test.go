package schema

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/util"
)

// seedVersions registers canonical records for the subject at each of
// the given versions.
func seedVersions(t *testing.T, store Store, subject string, versions ...string) {
	t.Helper()

	for _, version := range versions {
		record := Record{
			Subject:    subject,
			Type:       TypeCanonical,
			Version:    version,
			Definition: json.RawMessage(`{"type":"object"}`),
		}
		_, err := store.Create(context.Background(), record)
		require.NoError(t, err)
	}
}

func TestResolver_ResolveCanonical_ExactVersion(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil)
	seedVersions(t, store, "orders", "1.0.0", "1.2.0")

	resolver := NewResolver(store, nil)

	record, err := resolver.ResolveCanonical(context.Background(),
		NewCanonicalReference("orders", "1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", record.Version)
	assert.Equal(t, TypeCanonical, record.Type)
}

func TestResolver_ResolveCanonical_ExactVersionMissing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil)
	seedVersions(t, store, "orders", "1.0.0")

	resolver := NewResolver(store, nil)

	_, err := resolver.ResolveCanonical(context.Background(),
		NewCanonicalReference("orders", "9.9.9"))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestResolver_ResolveCanonical_LatestVersion(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil)
	seedVersions(t, store, "orders", "1.0.0", "1.10.0", "1.2.0")

	resolver := NewResolver(store, nil)

	record, err := resolver.ResolveCanonical(context.Background(),
		NewCanonicalReference("orders", ""))
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", record.Version)
}

func TestResolver_ResolveCanonical_PrereleaseBelowRelease(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil)
	seedVersions(t, store, "orders", "1.2.0-beta", "1.2.0")

	resolver := NewResolver(store, nil)

	record, err := resolver.ResolveCanonical(context.Background(),
		NewCanonicalReference("orders", ""))
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", record.Version)
}

func TestResolver_ResolveCanonical_NoVersions(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMemoryStore(nil), nil)

	_, err := resolver.ResolveCanonical(context.Background(),
		NewCanonicalReference("unknown", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestResolver_ResolveCanonical_RejectsConsumer(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMemoryStore(nil), nil)

	ref := Reference{Subject: "orders", ConsumerID: "billing-app"}
	_, err := resolver.ResolveCanonical(context.Background(), ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	assert.Contains(t, err.Error(), "must not set consumerId")
}

func TestResolver_ResolveCanonical_MissingSubject(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMemoryStore(nil), nil)

	_, err := resolver.ResolveCanonical(context.Background(), Reference{})
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestResolver_ResolveConsumerOutput(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil)
	ctx := context.Background()

	for _, version := range []string{"1.0.0", "2.0.0"} {
		record := validConsumerOutputRecord()
		record.Version = version
		_, err := store.Create(ctx, record)
		require.NoError(t, err)
	}

	resolver := NewResolver(store, nil)

	tests := []struct {
		name        string
		ref         Reference
		consumerID  string
		wantVersion string
		wantErr     error
	}{
		{
			name:        "consumer from reference",
			ref:         NewConsumerOutputReference("orders", "billing-app", "1.0.0"),
			wantVersion: "1.0.0",
		},
		{
			name:        "consumer from argument",
			ref:         Reference{Subject: "orders"},
			consumerID:  "billing-app",
			wantVersion: "2.0.0",
		},
		{
			name:       "consumer mismatch",
			ref:        NewConsumerOutputReference("orders", "billing-app", ""),
			consumerID: "other-app",
			wantErr:    util.ErrInvalidInput,
		},
		{
			name:    "consumer missing everywhere",
			ref:     Reference{Subject: "orders"},
			wantErr: util.ErrInvalidInput,
		},
		{
			name:       "unknown consumer",
			ref:        Reference{Subject: "orders"},
			consumerID: "nobody",
			wantErr:    util.ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record, err := resolver.ResolveConsumerOutput(ctx, tt.ref, tt.consumerID)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, record.Version)
			assert.Equal(t, "billing-app", record.ConsumerID)
		})
	}
}

func TestLatestByVersion_SkipsUnparseable(t *testing.T) {
	t.Parallel()

	records := []Record{
		{Version: "garbage"},
		{Version: "1.0.0"},
		{Version: "0.9.0"},
	}

	latest, ok := latestByVersion(records)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", latest.Version)

	_, ok = latestByVersion([]Record{{Version: "garbage"}})
	assert.False(t, ok)
}
