// Package transform orchestrates transformation requests: it resolves
// the template version to apply, verifies the template's schema
// bindings, and delegates the document to the engine the template
// names.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/canonmorph/canonmorph/internal/config"
	"github.com/canonmorph/canonmorph/internal/engine"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/schema"
	"github.com/canonmorph/canonmorph/internal/template"
	"github.com/canonmorph/canonmorph/internal/util"
)

// TemplateSource yields the template version a request resolves to.
// The lifecycle service implements it.
type TemplateSource interface {
	GetActive(ctx context.Context, consumerID, subject string) (template.Template, error)
	GetVersion(ctx context.Context, consumerID, subject, version string) (template.Template, error)
}

// SchemaSource resolves stored schema ids back to their records.
type SchemaSource interface {
	GetByID(ctx context.Context, id string) (schema.Record, error)
}

// StepFailure reports a pipeline step that failed but was tolerated by
// its continueOnError setting.
type StepFailure struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// Result is the outcome of one transformation request.
type Result struct {
	Output          map[string]interface{}
	Subject         string
	TemplateVersion string
	Engine          engine.Type
	StepErrors      []StepFailure
}

// Service is the transformation orchestrator.
type Service struct {
	logger           observability.Logger
	templates        TemplateSource
	schemas          SchemaSource
	registry         *engine.Registry
	validatePayloads bool
}

// NewService creates the transformation orchestrator. A nil config
// leaves payload validation off.
func NewService(templates TemplateSource, schemas SchemaSource, registry *engine.Registry,
	cfg *config.TransformConfig, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}

	validatePayloads := false
	if cfg != nil {
		validatePayloads = cfg.ValidatePayloads
	}

	return &Service{
		logger:           logger,
		templates:        templates,
		schemas:          schemas,
		registry:         registry,
		validatePayloads: validatePayloads,
	}
}

// Transform applies the pair's active template version to the input
// document.
func (s *Service) Transform(ctx context.Context, consumerID, subject string, input map[string]interface{}) (Result, error) {
	tmpl, err := s.templates.GetActive(ctx, consumerID, subject)
	if err != nil {
		return Result{}, err
	}
	return s.apply(ctx, tmpl, input)
}

// TransformVersion applies an explicit template version to the input
// document, regardless of which version is active.
func (s *Service) TransformVersion(ctx context.Context, consumerID, subject, version string, input map[string]interface{}) (Result, error) {
	tmpl, err := s.templates.GetVersion(ctx, consumerID, subject, version)
	if err != nil {
		return Result{}, err
	}
	return s.apply(ctx, tmpl, input)
}

// ValidateTemplate dry-runs an engine payload through the engine's
// validation without persisting anything.
func (s *Service) ValidateTemplate(ctx context.Context, engineTag, payload string) error {
	engineType, err := engine.ParseType(engineTag)
	if err != nil {
		return err
	}
	eng, err := s.registry.Resolve(engineType)
	if err != nil {
		return err
	}
	return eng.ValidateExpression(ctx, payload)
}

func (s *Service) apply(ctx context.Context, tmpl template.Template, input map[string]interface{}) (Result, error) {
	engineTag := string(tmpl.Engine)
	start := time.Now()
	defer func() {
		GetTransformMetrics().requestDuration.WithLabelValues(engineTag).Observe(time.Since(start).Seconds())
	}()

	eng, err := s.registry.Resolve(tmpl.Engine)
	if err != nil {
		GetTransformMetrics().requestsTotal.WithLabelValues(engineTag, "error").Inc()
		return Result{}, err
	}

	inputSchema, outputSchema, err := s.bindings(ctx, tmpl)
	if err != nil {
		GetTransformMetrics().requestsTotal.WithLabelValues(engineTag, "error").Inc()
		return Result{}, err
	}

	if s.validatePayloads && inputSchema.ID != "" {
		if err := validateAgainstSchema(inputSchema, input); err != nil {
			GetTransformMetrics().requestsTotal.WithLabelValues(engineTag, "error").Inc()
			GetTransformMetrics().payloadViolationsTotal.WithLabelValues("input").Inc()
			return Result{}, util.NewValidationError(fmt.Sprintf(
				"input document violates schema %s@%s: %v",
				inputSchema.Subject, inputSchema.Version, err))
		}
	}

	recorder := &engine.StepRecorder{}
	output, err := eng.Transform(engine.WithStepRecorder(ctx, recorder), input, tmpl.Expression)
	if err != nil {
		GetTransformMetrics().requestsTotal.WithLabelValues(engineTag, "error").Inc()
		s.logger.Debug("transformation failed",
			observability.String("template", tmpl.Coordinate()),
			observability.String("engine", engineTag),
			observability.Error(err),
		)
		return Result{}, err
	}

	if s.validatePayloads && outputSchema.ID != "" {
		if err := validateAgainstSchema(outputSchema, output); err != nil {
			GetTransformMetrics().requestsTotal.WithLabelValues(engineTag, "error").Inc()
			GetTransformMetrics().payloadViolationsTotal.WithLabelValues("output").Inc()
			// The caller sent a valid document; a bad shape coming
			// out is the template's fault.
			return Result{}, util.NewTransformationError(engineTag,
				"transformed document violates the output schema", err)
		}
	}

	failures := stepFailures(recorder.Errors())
	if len(failures) > 0 {
		GetTransformMetrics().stepErrorsTotal.Add(float64(len(failures)))
	}

	GetTransformMetrics().requestsTotal.WithLabelValues(engineTag, "success").Inc()
	s.logger.Debug("transformation applied",
		observability.String("template", tmpl.Coordinate()),
		observability.String("engine", engineTag),
		observability.Int("stepErrors", len(failures)),
	)

	return Result{
		Output:          output,
		Subject:         tmpl.Subject,
		TemplateVersion: tmpl.Version,
		Engine:          tmpl.Engine,
		StepErrors:      failures,
	}, nil
}

// bindings loads the schema records the template references. A miss
// reads as not-found: a template cannot outlive its schemas. Rows
// written outside the service may carry empty ids, which mean no
// binding.
func (s *Service) bindings(ctx context.Context, tmpl template.Template) (schema.Record, schema.Record, error) {
	var input, output schema.Record

	if tmpl.InputSchemaID != "" {
		record, err := s.schemas.GetByID(ctx, tmpl.InputSchemaID)
		if err != nil {
			return schema.Record{}, schema.Record{}, err
		}
		input = record
	}
	if tmpl.OutputSchemaID != "" {
		record, err := s.schemas.GetByID(ctx, tmpl.OutputSchemaID)
		if err != nil {
			return schema.Record{}, schema.Record{}, err
		}
		output = record
	}

	return input, output, nil
}

// stepFailures converts recorded step errors into the response shape.
// Tolerated failures surface to the caller instead of dying in a log
// line.
func stepFailures(recorded []engine.StepError) []StepFailure {
	if len(recorded) == 0 {
		return nil
	}

	failures := make([]StepFailure, 0, len(recorded))
	for _, stepErr := range recorded {
		failures = append(failures, StepFailure{
			Step:    stepErr.Step,
			Message: stepErr.Err.Error(),
		})
	}
	return failures
}
