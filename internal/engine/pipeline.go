package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/canonmorph/canonmorph/internal/catalog"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// PipelineConfiguration is the payload of a pipeline template.
type PipelineConfiguration struct {
	Type  string         `json:"type"`
	Steps []PipelineStep `json:"steps"`
}

// PipelineStep names a catalogued transformation applied at one position
// in the pipeline.
type PipelineStep struct {
	Name             string `json:"name"`
	TransformationID string `json:"transformationId"`
	ContinueOnError  bool   `json:"continueOnError,omitempty"`
	Description      string `json:"description,omitempty"`
}

// StepError records a step failure that was skipped because the step
// allows continuing on error.
type StepError struct {
	Step string
	Err  error
}

// StepRecorder collects skipped step failures across a pipeline run.
// The orchestrator installs one in the request context so the failures
// surface in response metadata instead of being dropped.
type StepRecorder struct {
	mu     sync.Mutex
	errors []StepError
}

// Record appends a step failure.
func (r *StepRecorder) Record(step string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, StepError{Step: step, Err: err})
}

// Errors returns the recorded failures in occurrence order.
func (r *StepRecorder) Errors() []StepError {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]StepError, len(r.errors))
	copy(out, r.errors)
	return out
}

type stepRecorderKey struct{}

// WithStepRecorder installs a step recorder in the context.
func WithStepRecorder(ctx context.Context, recorder *StepRecorder) context.Context {
	return context.WithValue(ctx, stepRecorderKey{}, recorder)
}

// StepRecorderFrom extracts the step recorder from the context.
func StepRecorderFrom(ctx context.Context) (*StepRecorder, bool) {
	recorder, ok := ctx.Value(stepRecorderKey{}).(*StepRecorder)
	return recorder, ok && recorder != nil
}

// pipelineEngine chains catalogued transformations sequentially, feeding
// each step's output into the next.
type pipelineEngine struct {
	logger    observability.Logger
	catalog   catalog.Catalog
	direct    Engine
	validator *ConfigValidator
}

// NewPipeline creates the pipeline engine. The catalog resolves step
// transformation ids to expressions, which the direct engine applies.
func NewPipeline(cat catalog.Catalog, direct Engine, validator *ConfigValidator, logger observability.Logger) Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &pipelineEngine{
		logger:    logger,
		catalog:   cat,
		direct:    direct,
		validator: validator,
	}
}

// Transform applies the pipeline steps in order. A failed step aborts
// the run unless it allows continuing on error, in which case the
// failure is recorded and the next step receives the data the failed
// step received. Resolving a step's transformation id counts as part of
// the step, so a dangling id honors continueOnError too.
func (e *pipelineEngine) Transform(ctx context.Context, input map[string]interface{}, payload string) (map[string]interface{}, error) {
	start := time.Now()
	defer func() {
		GetEngineMetrics().operationDuration.WithLabelValues("pipeline", "transform").Observe(time.Since(start).Seconds())
	}()

	cfg, err := parsePipelineConfiguration(payload)
	if err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("pipeline", "transform", "error").Inc()
		return nil, err
	}

	current := input
	for _, step := range cfg.Steps {
		output, err := e.applyStep(ctx, current, step)
		if err != nil {
			if !step.ContinueOnError {
				GetEngineMetrics().operationsTotal.WithLabelValues("pipeline", "transform", "error").Inc()
				return nil, util.NewStepError("pipeline", step.Name, "step failed", err)
			}
			e.recordStepError(ctx, step.Name, err)
			continue
		}
		current = output
	}

	GetEngineMetrics().operationsTotal.WithLabelValues("pipeline", "transform", "success").Inc()
	return current, nil
}

// ValidateExpression checks a pipeline payload against the structural
// schema, which requires at least one step.
func (e *pipelineEngine) ValidateExpression(_ context.Context, payload string) error {
	if err := e.validator.ValidatePipeline([]byte(payload)); err != nil {
		GetEngineMetrics().operationsTotal.WithLabelValues("pipeline", "validate", "error").Inc()
		return err
	}

	GetEngineMetrics().operationsTotal.WithLabelValues("pipeline", "validate", "success").Inc()
	return nil
}

// parsePipelineConfiguration parses the payload and rejects a pipeline
// without steps.
func parsePipelineConfiguration(payload string) (PipelineConfiguration, error) {
	var cfg PipelineConfiguration
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return PipelineConfiguration{}, util.NewTransformationError("pipeline", "invalid pipeline configuration", err)
	}
	if len(cfg.Steps) == 0 {
		return PipelineConfiguration{}, util.NewTransformationError("pipeline", "pipeline has no steps", nil)
	}
	return cfg, nil
}

// applyStep resolves the step's transformation and applies it to the
// current data.
func (e *pipelineEngine) applyStep(ctx context.Context, data map[string]interface{}, step PipelineStep) (map[string]interface{}, error) {
	expression, err := e.catalog.Lookup(ctx, step.TransformationID)
	if err != nil {
		return nil, err
	}
	return e.direct.Transform(ctx, data, expression)
}

// recordStepError surfaces a skipped step failure through the context
// recorder, or logs it when no recorder is installed.
func (e *pipelineEngine) recordStepError(ctx context.Context, step string, err error) {
	GetEngineMetrics().stepErrorsTotal.Inc()

	if recorder, ok := StepRecorderFrom(ctx); ok {
		recorder.Record(step, err)
		return
	}

	e.logger.Warn("pipeline step failed, continuing",
		observability.String("step", step),
		observability.Error(err),
	)
}

var _ Engine = (*pipelineEngine)(nil)
