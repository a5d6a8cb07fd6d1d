package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/schema"
)

func testSchemaRecord(definition string) schema.Record {
	return schema.Record{
		ID:         "rec-1",
		Subject:    "orders",
		Type:       schema.TypeCanonical,
		Version:    "1.0.0",
		Definition: json.RawMessage(definition),
	}
}

func TestValidateAgainstSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		definition string
		doc        map[string]interface{}
		wantErr    bool
	}{
		{
			name:       "object passes open schema",
			definition: `{"type":"object"}`,
			doc:        map[string]interface{}{"id": "A1"},
		},
		{
			name:       "required present",
			definition: `{"type":"object","required":["id"]}`,
			doc:        map[string]interface{}{"id": "A1"},
		},
		{
			name:       "required missing",
			definition: `{"type":"object","required":["id"]}`,
			doc:        map[string]interface{}{"status": "open"},
			wantErr:    true,
		},
		{
			name:       "property type mismatch",
			definition: `{"type":"object","properties":{"count":{"type":"integer"}}}`,
			doc:        map[string]interface{}{"count": "three"},
			wantErr:    true,
		},
		{
			name:       "integer property from Go literal",
			definition: `{"type":"object","properties":{"count":{"type":"integer"}}}`,
			doc:        map[string]interface{}{"count": 3},
		},
		{
			name:       "nested required",
			definition: `{"type":"object","properties":{"order":{"type":"object","required":["status"]}}}`,
			doc: map[string]interface{}{
				"order": map[string]interface{}{"status": "open"},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validateAgainstSchema(testSchemaRecord(tt.definition), tt.doc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateAgainstSchema_UnparseableDefinition(t *testing.T) {
	t.Parallel()

	err := validateAgainstSchema(testSchemaRecord(`{"type": 42}`),
		map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rec-1")
}

func TestNormalizeForValidation(t *testing.T) {
	t.Parallel()

	normalized := normalizeForValidation(map[string]interface{}{
		"count": 3,
		"big":   int64(9),
		"ratio": 2.5,
		"tags":  []interface{}{1, "a"},
		"nested": map[string]interface{}{
			"n": int32(7),
		},
	})

	assert.Equal(t, map[string]interface{}{
		"count": float64(3),
		"big":   float64(9),
		"ratio": 2.5,
		"tags":  []interface{}{float64(1), "a"},
		"nested": map[string]interface{}{
			"n": float64(7),
		},
	}, normalized)
}
