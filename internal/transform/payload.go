package transform

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/canonmorph/canonmorph/internal/schema"
)

// validateAgainstSchema checks a document against a stored schema
// definition. Definitions compile fresh on every call, matching the
// per-request compile model of the engines.
func validateAgainstSchema(record schema.Record, doc map[string]interface{}) error {
	compiler := jsonschema.NewCompiler()
	name := "schema.json"

	if err := compiler.AddResource(name, strings.NewReader(string(record.Definition))); err != nil {
		return fmt.Errorf("failed to load schema %s: %w", record.ID, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", record.ID, err)
	}

	return compiled.Validate(normalizeForValidation(doc))
}

// normalizeForValidation rebuilds the document with the value types
// jsonschema expects from a JSON decode. Engine output already has
// that shape; this keeps hand-built test documents and callers that
// use Go integer literals working too.
func normalizeForValidation(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, item := range v {
			normalized[key] = normalizeForValidation(item)
		}
		return normalized
	case []interface{}:
		normalized := make([]interface{}, len(v))
		for i, item := range v {
			normalized[i] = normalizeForValidation(item)
		}
		return normalized
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return v
	}
}
