package template

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/canonmorph/canonmorph/internal/engine"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/schema"
	"github.com/canonmorph/canonmorph/internal/util"
)

// CreateRequest carries the caller-supplied fields of a new template
// version. Exactly one payload field applies, determined by Engine.
type CreateRequest struct {
	Version        string            `json:"version"`
	Engine         string            `json:"engine"`
	Expression     string            `json:"expression,omitempty"`
	RouterConfig   json.RawMessage   `json:"routerConfig,omitempty"`
	PipelineConfig json.RawMessage   `json:"pipelineConfig,omitempty"`
	InputSchema    *schema.Reference `json:"inputSchema,omitempty"`
	OutputSchema   *schema.Reference `json:"outputSchema,omitempty"`
	Description    string            `json:"description,omitempty"`
}

// Service drives the template lifecycle: it validates engine payloads,
// resolves schema references, decides auto-activation and delegates the
// transactional state transitions to the store.
type Service struct {
	logger   observability.Logger
	store    Store
	registry *engine.Registry
	resolver *schema.Resolver
}

// NewService creates the template lifecycle service.
func NewService(store Store, registry *engine.Registry, resolver *schema.Resolver, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		logger:   logger,
		store:    store,
		registry: registry,
		resolver: resolver,
	}
}

// CreateVersion registers a new template version. Both schema
// references must resolve; a template cannot exist without its input
// and output schemas. The pair's first version becomes active, as does
// any new maximum by semantic version ordering; other versions are
// created inactive.
func (s *Service) CreateVersion(ctx context.Context, consumerID, subject string, req CreateRequest) (Template, error) {
	start := time.Now()
	defer func() {
		GetTemplateMetrics().lifecycleDuration.WithLabelValues("create").Observe(time.Since(start).Seconds())
	}()

	engineType, err := engine.ParseType(req.Engine)
	if err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}

	payload, configuration, err := EnginePayload(engineType, req)
	if err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}

	tmpl := Template{
		ConsumerID:    consumerID,
		Subject:       subject,
		Version:       req.Version,
		Engine:        engineType,
		Expression:    payload,
		Configuration: configuration,
		Description:   req.Description,
	}
	if err := tmpl.Validate(); err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}

	eng, err := s.registry.Resolve(engineType)
	if err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}
	if err := eng.ValidateExpression(ctx, payload); err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}

	if req.InputSchema == nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, util.NewValidationError("inputSchema reference is required")
	}
	input, err := s.resolver.ResolveCanonical(ctx, *req.InputSchema)
	if err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}
	tmpl.InputSchemaID = input.ID

	if req.OutputSchema == nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, util.NewValidationError("outputSchema reference is required")
	}
	output, err := s.resolver.ResolveConsumerOutput(ctx, *req.OutputSchema, consumerID)
	if err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}
	tmpl.OutputSchemaID = output.ID

	activate, err := s.shouldActivate(ctx, consumerID, subject, req.Version)
	if err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}

	created, err := s.store.Create(ctx, tmpl, activate)
	if err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "error").Inc()
		return Template{}, err
	}

	GetTemplateMetrics().lifecycleTotal.WithLabelValues("create", "success").Inc()
	s.logger.Info("template version created",
		observability.String("template", created.Coordinate()),
		observability.String("engine", string(created.Engine)),
		observability.Bool("active", created.Active),
	)

	return created, nil
}

// GetVersion returns one version of a pair.
func (s *Service) GetVersion(ctx context.Context, consumerID, subject, version string) (Template, error) {
	return s.store.GetVersion(ctx, consumerID, subject, version)
}

// GetActive returns the pair's active version.
func (s *Service) GetActive(ctx context.Context, consumerID, subject string) (Template, error) {
	return s.store.GetActive(ctx, consumerID, subject)
}

// ListVersions returns all versions of a pair in ascending semantic
// version order.
func (s *Service) ListVersions(ctx context.Context, consumerID, subject string) ([]Template, error) {
	return s.store.ListVersions(ctx, consumerID, subject)
}

// Activate makes the given version the pair's active one. Activating
// the already active version is a no-op.
func (s *Service) Activate(ctx context.Context, consumerID, subject, version string) error {
	start := time.Now()
	defer func() {
		GetTemplateMetrics().lifecycleDuration.WithLabelValues("activate").Observe(time.Since(start).Seconds())
	}()

	if err := s.store.Activate(ctx, consumerID, subject, version); err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("activate", "error").Inc()
		return err
	}

	GetTemplateMetrics().lifecycleTotal.WithLabelValues("activate", "success").Inc()
	s.logger.Info("template version activated",
		observability.String("template", versionKey(consumerID, subject, version)),
	)
	return nil
}

// Deactivate turns the given version off, promoting the highest
// remaining version.
func (s *Service) Deactivate(ctx context.Context, consumerID, subject, version string) error {
	start := time.Now()
	defer func() {
		GetTemplateMetrics().lifecycleDuration.WithLabelValues("deactivate").Observe(time.Since(start).Seconds())
	}()

	if err := s.store.Deactivate(ctx, consumerID, subject, version); err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("deactivate", "error").Inc()
		return err
	}

	GetTemplateMetrics().lifecycleTotal.WithLabelValues("deactivate", "success").Inc()
	s.logger.Info("template version deactivated",
		observability.String("template", versionKey(consumerID, subject, version)),
	)
	return nil
}

// Delete removes the given version.
func (s *Service) Delete(ctx context.Context, consumerID, subject, version string) error {
	start := time.Now()
	defer func() {
		GetTemplateMetrics().lifecycleDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	}()

	if err := s.store.Delete(ctx, consumerID, subject, version); err != nil {
		GetTemplateMetrics().lifecycleTotal.WithLabelValues("delete", "error").Inc()
		return err
	}

	GetTemplateMetrics().lifecycleTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("template version deleted",
		observability.String("template", versionKey(consumerID, subject, version)),
	)
	return nil
}

// shouldActivate reports whether the new version becomes active: the
// pair's first version always does, and so does a version no existing
// version exceeds. The decision races a concurrent create only up to
// which writer commits last; the store's transactional swap keeps the
// single-active invariant either way.
func (s *Service) shouldActivate(ctx context.Context, consumerID, subject, version string) (bool, error) {
	versions, err := s.store.ListVersions(ctx, consumerID, subject)
	if err != nil {
		return false, err
	}
	if len(versions) == 0 {
		return true, nil
	}

	candidate, err := semver.NewVersion(version)
	if err != nil {
		return false, util.NewValidationError(
			fmt.Sprintf("version %s is not a valid semantic version", version))
	}

	for _, existing := range versions {
		v, err := semver.NewVersion(existing.Version)
		if err != nil {
			continue
		}
		if v.GreaterThan(candidate) {
			return false, nil
		}
	}
	return true, nil
}

// EnginePayload picks the payload field matching the engine and
// rejects bodies that mix payload kinds. It returns the payload handed
// to the engine and the configuration persisted alongside it.
func EnginePayload(engineType engine.Type, req CreateRequest) (string, string, error) {
	switch engineType {
	case engine.TypeDirect:
		if len(req.RouterConfig) > 0 || len(req.PipelineConfig) > 0 {
			return "", "", util.NewValidationError(
				"direct templates carry an expression, not a configuration")
		}
		return req.Expression, "", nil

	case engine.TypeRouter:
		if len(req.RouterConfig) == 0 {
			return "", "", util.NewValidationError("router templates require routerConfig")
		}
		if req.Expression != "" || len(req.PipelineConfig) > 0 {
			return "", "", util.NewValidationError("router templates carry only routerConfig")
		}
		cfg := string(req.RouterConfig)
		return cfg, cfg, nil

	case engine.TypePipeline:
		if len(req.PipelineConfig) == 0 {
			return "", "", util.NewValidationError("pipeline templates require pipelineConfig")
		}
		if req.Expression != "" || len(req.RouterConfig) > 0 {
			return "", "", util.NewValidationError("pipeline templates carry only pipelineConfig")
		}
		cfg := string(req.PipelineConfig)
		return cfg, cfg, nil

	default:
		return "", "", util.NewUnsupportedEngineError(string(engineType))
	}
}
