package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/canonmorph/canonmorph/internal/util"
)

// Structural schemas for the router and pipeline payloads. Route
// conditions are deliberately not constrained here: a condition that
// does not conform to the grammar evaluates to false at transform time.
const (
	routerSchemaJSON = `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"type": {"const": "router"},
			"routes": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"condition": {"type": "string", "minLength": 1},
						"transformationId": {"type": "string", "minLength": 1},
						"description": {"type": "string"}
					},
					"required": ["condition", "transformationId"],
					"additionalProperties": false
				}
			},
			"defaultTransformationId": {"type": "string", "minLength": 1}
		},
		"required": ["type", "routes"],
		"additionalProperties": false
	}`

	pipelineSchemaJSON = `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"type": {"const": "pipeline"},
			"steps": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"transformationId": {"type": "string", "minLength": 1},
						"continueOnError": {"type": "boolean"},
						"description": {"type": "string"}
					},
					"required": ["name", "transformationId"],
					"additionalProperties": false
				}
			}
		},
		"required": ["type", "steps"],
		"additionalProperties": false
	}`
)

// ConfigValidator checks router and pipeline payloads against their
// structural schemas before the engines parse them.
type ConfigValidator struct {
	router   *jsonschema.Schema
	pipeline *jsonschema.Schema
}

// NewConfigValidator compiles the structural schemas.
func NewConfigValidator() (*ConfigValidator, error) {
	router, err := compileConfigSchema("router.json", routerSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile router schema: %w", err)
	}

	pipeline, err := compileConfigSchema("pipeline.json", pipelineSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pipeline schema: %w", err)
	}

	return &ConfigValidator{
		router:   router,
		pipeline: pipeline,
	}, nil
}

// compileConfigSchema compiles an embedded schema document.
func compileConfigSchema(name, document string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(document)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

// ValidateRouter checks a router payload against its structural schema.
func (v *ConfigValidator) ValidateRouter(raw []byte) error {
	return validateConfig(string(TypeRouter), v.router, raw)
}

// ValidatePipeline checks a pipeline payload against its structural
// schema.
func (v *ConfigValidator) ValidatePipeline(raw []byte) error {
	return validateConfig(string(TypePipeline), v.pipeline, raw)
}

// validateConfig parses the payload and validates it against the schema.
func validateConfig(engine string, schema *jsonschema.Schema, raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return util.NewExpressionError(engine, "configuration is not valid JSON", err)
	}

	if err := schema.Validate(doc); err != nil {
		return util.NewExpressionError(engine, "configuration failed structural validation", err)
	}

	return nil
}
