package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/functions"
	"github.com/canonmorph/canonmorph/internal/util"
)

func TestEvaluator_Compile_Valid(t *testing.T) {
	t.Parallel()

	evaluator := NewEvaluator(nil)

	tests := []struct {
		name       string
		expression string
	}{
		{
			name:       "identity",
			expression: "doc",
		},
		{
			name:       "object literal",
			expression: "{'sku': doc.id, 'qty': 2}",
		},
		{
			name:       "dynamic field access",
			expression: "doc.payload",
		},
		{
			name:       "helper function in object",
			expression: "{'name': upper(doc.name)}",
		},
		{
			name:       "conditional branches",
			expression: "doc.type == 'user' ? {'kind': 'user'} : {'kind': 'other'}",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			program, err := evaluator.Compile(tt.expression)
			require.NoError(t, err)
			assert.NotNil(t, program)
		})
	}
}

func TestEvaluator_Compile_Invalid(t *testing.T) {
	t.Parallel()

	evaluator := NewEvaluator(nil)

	tests := []struct {
		name       string
		expression string
	}{
		{
			name:       "empty expression",
			expression: "",
		},
		{
			name:       "whitespace only",
			expression: "   ",
		},
		{
			name:       "syntax error",
			expression: "doc..name",
		},
		{
			name:       "unknown function",
			expression: "frobnicate(doc)",
		},
		{
			name:       "unknown variable",
			expression: "payload.name",
		},
		{
			name:       "statically scalar result",
			expression: "upper(doc.name)",
		},
		{
			name:       "statically numeric result",
			expression: "1 + 2",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := evaluator.Compile(tt.expression)
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrInvalidExpression)
		})
	}
}

func TestProgram_Eval(t *testing.T) {
	t.Parallel()

	evaluator := NewEvaluator(nil)

	tests := []struct {
		name       string
		expression string
		doc        map[string]interface{}
		expected   map[string]interface{}
	}{
		{
			name:       "identity",
			expression: "doc",
			doc:        map[string]interface{}{"name": "widget", "qty": float64(3)},
			expected:   map[string]interface{}{"name": "widget", "qty": float64(3)},
		},
		{
			name:       "projection",
			expression: "{'sku': doc.id}",
			doc:        map[string]interface{}{"id": "A-1", "noise": true},
			expected:   map[string]interface{}{"sku": "A-1"},
		},
		{
			name:       "literals normalize to JSON types",
			expression: "{'qty': 2, 'tags': ['a', 'b'], 'ok': true}",
			doc:        map[string]interface{}{},
			expected: map[string]interface{}{
				"qty":  float64(2),
				"tags": []interface{}{"a", "b"},
				"ok":   true,
			},
		},
		{
			name:       "nested object",
			expression: "{'item': {'name': doc.name}}",
			doc:        map[string]interface{}{"name": "bolt"},
			expected: map[string]interface{}{
				"item": map[string]interface{}{"name": "bolt"},
			},
		},
		{
			name:       "helper function",
			expression: "{'name': upper(doc.name)}",
			doc:        map[string]interface{}{"name": "bolt"},
			expected:   map[string]interface{}{"name": "BOLT"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			program, err := evaluator.Compile(tt.expression)
			require.NoError(t, err)

			result, err := program.Eval(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestProgram_Eval_MissingKey(t *testing.T) {
	t.Parallel()

	evaluator := NewEvaluator(nil)

	program, err := evaluator.Compile("{'x': doc.missing}")
	require.NoError(t, err)

	_, err = program.Eval(map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluation failed")
}

func TestProgram_Eval_NonObjectResult(t *testing.T) {
	t.Parallel()

	evaluator := NewEvaluator(nil)

	// doc.value is dyn at compile time, a scalar at runtime
	program, err := evaluator.Compile("doc.value")
	require.NoError(t, err)

	_, err = program.Eval(map[string]interface{}{"value": "scalar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must produce an object")
}

func TestEvaluator_CustomRegistry(t *testing.T) {
	t.Parallel()

	registry := functions.NewEmptyRegistry()
	evaluator := NewEvaluator(registry)

	// Built-ins are absent from an empty registry
	_, err := evaluator.Compile("{'name': upper(doc.name)}")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInvalidExpression)

	// Plain expressions still compile
	program, err := evaluator.Compile("doc")
	require.NoError(t, err)

	result, err := program.Eval(map[string]interface{}{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": "b"}, result)
}

func TestEvaluator_RegistryChangesVisible(t *testing.T) {
	t.Parallel()

	registry := functions.NewRegistry()
	evaluator := NewEvaluator(registry)

	registry.Unregister("upper")

	_, err := evaluator.Compile("{'name': upper(doc.name)}")
	require.Error(t, err, "fresh environments should see registry changes")
}
