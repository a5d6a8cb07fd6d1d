package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/canonmorph/canonmorph/internal/catalog"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// RouterConfiguration is the payload of a router template.
type RouterConfiguration struct {
	Type                    string  `json:"type"`
	Routes                  []Route `json:"routes"`
	DefaultTransformationID string  `json:"defaultTransformationId,omitempty"`
}

// Route pairs a condition with the transformation applied when the
// condition holds.
type Route struct {
	Condition        string `json:"condition"`
	TransformationID string `json:"transformationId"`
	Description      string `json:"description,omitempty"`
}

// routerEngine selects a catalogued transformation by evaluating route
// conditions in order and applies it through the direct engine.
type routerEngine struct {
	logger    observability.Logger
	catalog   catalog.Catalog
	direct    Engine
	validator *ConfigValidator
}

// NewRouter creates the router engine. The catalog resolves route
// transformation ids to expressions, which the direct engine applies.
func NewRouter(cat catalog.Catalog, direct Engine, validator *ConfigValidator, logger observability.Logger) Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &routerEngine{
		logger:    logger,
		catalog:   cat,
		direct:    direct,
		validator: validator,
	}
}

// Transform selects a route for the input document and applies the
// catalogued transformation it names. Catalog misses surface as
// transformation failures because the payload was accepted at template
// creation and a dangling id is an operational inconsistency, not a
// caller error.
func (e *routerEngine) Transform(ctx context.Context, input map[string]interface{}, payload string) (map[string]interface{}, error) {
	start := time.Now()
	defer func() {
		GetEngineMetrics().operationDuration.WithLabelValues("router", "transform").Observe(time.Since(start).Seconds())
	}()

	var cfg RouterConfiguration
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("router", "transform", "error").Inc()
		return nil, util.NewTransformationError("router", "invalid router configuration", err)
	}

	id, ok := selectRoute(cfg, input)
	if !ok {
		GetEngineMetrics().operationsTotal.WithLabelValues("router", "transform", "error").Inc()
		return nil, util.NewNoMatchingRouteError(len(cfg.Routes))
	}

	expression, err := e.catalog.Lookup(ctx, id)
	if err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("router", "transform", "error").Inc()
		return nil, util.NewTransformationError("router",
			fmt.Sprintf("failed to resolve transformation %q", id), err)
	}

	e.logger.Debug("route selected",
		observability.String("transformationId", id),
	)

	output, err := e.direct.Transform(ctx, input, expression)
	if err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("router", "transform", "error").Inc()
		return nil, err
	}

	GetEngineMetrics().operationsTotal.WithLabelValues("router", "transform", "success").Inc()
	return output, nil
}

// ValidateExpression checks a router payload against the structural
// schema. Route conditions are not grammar-checked here: a condition
// that does not conform evaluates to false at transform time.
func (e *routerEngine) ValidateExpression(_ context.Context, payload string) error {
	if err := e.validator.ValidateRouter([]byte(payload)); err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("router", "validate", "error").Inc()
		return err
	}

	GetEngineMetrics().operationsTotal.WithLabelValues("router", "validate", "success").Inc()
	return nil
}

// selectRoute returns the transformation id of the first route whose
// condition holds for the document, falling back to the default
// transformation when no condition matches.
func selectRoute(cfg RouterConfiguration, doc map[string]interface{}) (string, bool) {
	for _, route := range cfg.Routes {
		if evaluateCondition(doc, route.Condition) {
			return route.TransformationID, true
		}
	}

	if cfg.DefaultTransformationID != "" {
		return cfg.DefaultTransformationID, true
	}

	return "", false
}

var _ Engine = (*routerEngine)(nil)
