package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/catalog"
	"github.com/canonmorph/canonmorph/internal/expr"
	"github.com/canonmorph/canonmorph/internal/util"
)

// newTestDirect builds a direct engine on the real evaluator with the
// built-in helper functions.
func newTestDirect(t *testing.T) Engine {
	t.Helper()
	return NewDirect(expr.NewEvaluator(nil), nil)
}

// newTestCatalog builds a memory catalog seeded with the given
// id to expression entries.
func newTestCatalog(t *testing.T, entries map[string]string) catalog.Catalog {
	t.Helper()

	store, err := catalog.NewMemoryStore(nil, nil)
	require.NoError(t, err)

	for id, expression := range entries {
		require.NoError(t, store.Put(context.Background(), catalog.Entry{
			ID:         id,
			Expression: expression,
		}))
	}
	return store
}

func newTestValidator(t *testing.T) *ConfigValidator {
	t.Helper()

	validator, err := NewConfigValidator()
	require.NoError(t, err)
	return validator
}

func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tag     string
		want    Type
		wantErr bool
	}{
		{name: "direct", tag: "direct", want: TypeDirect},
		{name: "router", tag: "router", want: TypeRouter},
		{name: "pipeline", tag: "pipeline", want: TypePipeline},
		{name: "empty", tag: "", wantErr: true},
		{name: "uppercase", tag: "DIRECT", wantErr: true},
		{name: "unknown", tag: "xslt", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseType(tt.tag)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, util.ErrInvalidInput)

				var unsupported *util.UnsupportedEngineError
				require.ErrorAs(t, err, &unsupported)
				assert.Equal(t, tt.tag, unsupported.Tag)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Type{TypeDirect, TypeRouter, TypePipeline}, Types())
}

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	direct := newTestDirect(t)
	validator := newTestValidator(t)
	cat := newTestCatalog(t, nil)
	router := NewRouter(cat, direct, validator, nil)
	pipeline := NewPipeline(cat, direct, validator, nil)

	registry := NewRegistry(direct, router, pipeline)

	tests := []struct {
		name string
		typ  Type
		want Engine
	}{
		{name: "direct", typ: TypeDirect, want: direct},
		{name: "router", typ: TypeRouter, want: router},
		{name: "pipeline", typ: TypePipeline, want: pipeline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := registry.Resolve(tt.typ)
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}

	_, err := registry.Resolve(Type("xslt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestRegistry_Types(t *testing.T) {
	t.Parallel()

	direct := newTestDirect(t)
	registry := NewRegistry(direct, direct, direct)
	assert.Equal(t, []Type{TypeDirect, TypeRouter, TypePipeline}, registry.Types())

	partial := NewRegistry(direct, nil, nil)
	assert.Equal(t, []Type{TypeDirect}, partial.Types())
}

func TestDeepCopyMap(t *testing.T) {
	t.Parallel()

	src := map[string]interface{}{
		"scalar": "value",
		"nested": map[string]interface{}{"key": "original"},
		"list":   []interface{}{"a", map[string]interface{}{"b": "c"}},
	}

	dst := deepCopyMap(src)
	require.Equal(t, src, dst)

	dst["nested"].(map[string]interface{})["key"] = "mutated"
	dst["list"].([]interface{})[1].(map[string]interface{})["b"] = "mutated"

	assert.Equal(t, "original", src["nested"].(map[string]interface{})["key"])
	assert.Equal(t, "c", src["list"].([]interface{})[1].(map[string]interface{})["b"])
}

func TestDeepCopyMap_Nil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, deepCopyMap(nil))
	assert.Nil(t, deepCopySlice(nil))
	assert.Nil(t, deepCopyValue(nil))
}
