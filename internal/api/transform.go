package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canonmorph/canonmorph/internal/engine"
	"github.com/canonmorph/canonmorph/internal/template"
	"github.com/canonmorph/canonmorph/internal/transform"
	"github.com/canonmorph/canonmorph/internal/util"
)

// TransformRequest is the body of the transform endpoints.
type TransformRequest struct {
	CanonicalJSON map[string]interface{} `json:"canonicalJson"`
}

// TransformResponse carries the transformed document and the template
// coordinates that produced it. StepErrors lists pipeline steps that
// failed but were tolerated by their continueOnError setting.
type TransformResponse struct {
	TransformedJSON map[string]interface{}  `json:"transformedJson"`
	Subject         string                  `json:"subject"`
	TemplateVersion string                  `json:"templateVersion"`
	Engine          string                  `json:"engine"`
	StepErrors      []transform.StepFailure `json:"stepErrors,omitempty"`
}

// ValidateTemplateRequest is the body of the dry-run validation
// endpoint. Exactly one payload field must match the engine.
type ValidateTemplateRequest struct {
	Engine         string          `json:"engine"`
	Expression     string          `json:"expression,omitempty"`
	RouterConfig   json.RawMessage `json:"routerConfig,omitempty"`
	PipelineConfig json.RawMessage `json:"pipelineConfig,omitempty"`
}

// ValidateTemplateResponse reports the dry-run outcome. Message is set
// when Valid is false.
type ValidateTemplateResponse struct {
	Valid   bool   `json:"valid"`
	Engine  string `json:"engine"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) transformActive(c *gin.Context) {
	h.runTransform(c, func(ctx context.Context, input map[string]interface{}) (transform.Result, error) {
		return h.transform.Transform(ctx, c.Param("consumerId"), c.Param("subject"), input)
	})
}

func (h *Handler) transformVersion(c *gin.Context) {
	h.runTransform(c, func(ctx context.Context, input map[string]interface{}) (transform.Result, error) {
		return h.transform.TransformVersion(ctx,
			c.Param("consumerId"), c.Param("subject"), c.Param("version"), input)
	})
}

// runTransform decodes the request body, applies the transformation and
// renders the result. An empty canonicalJson object is a valid input;
// an absent one is not.
func (h *Handler) runTransform(c *gin.Context, apply func(context.Context, map[string]interface{}) (transform.Result, error)) {
	var req TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	if req.CanonicalJSON == nil {
		writeError(c, util.NewValidationError("canonicalJson object is required"))
		return
	}

	result, err := apply(c.Request.Context(), req.CanonicalJSON)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TransformResponse{
		TransformedJSON: result.Output,
		Subject:         result.Subject,
		TemplateVersion: result.TemplateVersion,
		Engine:          string(result.Engine),
		StepErrors:      result.StepErrors,
	})
}

// listEngines returns the supported engine tags.
func (h *Handler) listEngines(c *gin.Context) {
	tags := make([]string, 0, len(engine.Types()))
	for _, t := range engine.Types() {
		tags = append(tags, string(t))
	}
	c.JSON(http.StatusOK, gin.H{"engines": tags})
}

// validateTemplate dry-runs an engine payload without persisting
// anything. Payload problems come back as valid:false; an engine tag
// the service does not know is a caller error.
func (h *Handler) validateTemplate(c *gin.Context) {
	var req ValidateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	engineType, err := engine.ParseType(req.Engine)
	if err != nil {
		writeError(c, err)
		return
	}

	payload, _, err := template.EnginePayload(engineType, template.CreateRequest{
		Engine:         req.Engine,
		Expression:     req.Expression,
		RouterConfig:   req.RouterConfig,
		PipelineConfig: req.PipelineConfig,
	})
	if err == nil {
		err = h.transform.ValidateTemplate(c.Request.Context(), req.Engine, payload)
	}

	if err != nil {
		if util.IsClientError(err) {
			c.JSON(http.StatusOK, ValidateTemplateResponse{
				Valid:   false,
				Engine:  string(engineType),
				Message: err.Error(),
			})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ValidateTemplateResponse{Valid: true, Engine: string(engineType)})
}
