package engine

import (
	"context"
	"time"

	"github.com/canonmorph/canonmorph/internal/expr"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// directEngine applies a single transformation expression to the input
// document.
type directEngine struct {
	logger    observability.Logger
	evaluator expr.Evaluator
}

// NewDirect creates the direct engine on top of an expression evaluator.
func NewDirect(evaluator expr.Evaluator, logger observability.Logger) Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &directEngine{
		logger:    logger,
		evaluator: evaluator,
	}
}

// Transform compiles the expression and evaluates it against a deep copy
// of the input document. Registered helper functions must never see the
// caller's document, so the copy happens before evaluation.
func (e *directEngine) Transform(_ context.Context, input map[string]interface{}, payload string) (map[string]interface{}, error) {
	start := time.Now()
	defer func() {
		GetEngineMetrics().operationDuration.WithLabelValues("direct", "transform").Observe(time.Since(start).Seconds())
	}()

	program, err := e.evaluator.Compile(payload)
	if err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("direct", "transform", "error").Inc()
		return nil, util.NewTransformationError("direct", "expression compilation failed", err)
	}

	output, err := program.Eval(deepCopyMap(input))
	if err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("direct", "transform", "error").Inc()
		e.logger.Debug("direct transformation failed", observability.Error(err))
		return nil, util.NewTransformationError("direct", "expression evaluation failed", err)
	}

	GetEngineMetrics().operationsTotal.WithLabelValues("direct", "transform", "success").Inc()
	return output, nil
}

// ValidateExpression compiles the expression without evaluating it. The
// evaluator reports malformed expressions, blank ones included, as
// expression errors.
func (e *directEngine) ValidateExpression(_ context.Context, payload string) error {
	if _, err := e.evaluator.Compile(payload); err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("direct", "validate", "error").Inc()
		return err
	}

	GetEngineMetrics().operationsTotal.WithLabelValues("direct", "validate", "success").Inc()
	return nil
}

var _ Engine = (*directEngine)(nil)
