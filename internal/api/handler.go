package api

import (
	"github.com/gin-gonic/gin"

	"github.com/canonmorph/canonmorph/internal/catalog"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/schema"
	"github.com/canonmorph/canonmorph/internal/template"
	"github.com/canonmorph/canonmorph/internal/transform"
)

// HandlerConfig carries the services the HTTP surface exposes.
type HandlerConfig struct {
	Transform *transform.Service
	Templates *template.Service
	Schemas   schema.Store
	Catalog   catalog.Store

	// Compat is consulted when a schema version is registered for a
	// subject that already has versions. Nil selects the allow-all
	// checker.
	Compat            schema.Checker
	CompatibilityMode schema.Mode

	// Auth guards the mutating routes. Nil leaves them open.
	Auth gin.HandlerFunc

	Logger observability.Logger
}

// Handler serves the REST surface of the transformation service.
type Handler struct {
	logger     observability.Logger
	transform  *transform.Service
	templates  *template.Service
	schemas    schema.Store
	catalog    catalog.Store
	compat     schema.Checker
	compatMode schema.Mode
	auth       gin.HandlerFunc
}

// NewHandler creates the REST handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	compat := cfg.Compat
	if compat == nil {
		compat = schema.NewAllowAllChecker(logger)
	}

	mode := cfg.CompatibilityMode
	if mode == "" {
		mode = schema.ModeNone
	}

	auth := cfg.Auth
	if auth == nil {
		auth = func(c *gin.Context) {}
	}

	return &Handler{
		logger:     logger,
		transform:  cfg.Transform,
		templates:  cfg.Templates,
		schemas:    cfg.Schemas,
		catalog:    cfg.Catalog,
		compat:     compat,
		compatMode: mode,
		auth:       auth,
	}
}

// RegisterRoutes registers the REST routes on the given router. Reads
// and transform calls are open; mutating routes pass through the auth
// handler first.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	root := router.Group("/api")

	root.GET("/consumers/engines", h.listEngines)
	root.POST("/templates/validate", h.validateTemplate)

	pair := root.Group("/consumers/:consumerId/subjects/:subject")
	pair.POST("/transform", h.transformActive)
	pair.POST("/transform/versions/:version", h.transformVersion)

	pair.GET("/templates", h.listTemplateVersions)
	pair.GET("/templates/active", h.getActiveTemplate)
	pair.GET("/templates/versions/:version", h.getTemplateVersion)
	pair.POST("/templates", h.auth, h.createTemplateVersion)
	pair.PUT("/templates/versions/:version/activate", h.auth, h.activateTemplateVersion)
	pair.PUT("/templates/versions/:version/deactivate", h.auth, h.deactivateTemplateVersion)
	pair.DELETE("/templates/versions/:version", h.auth, h.deleteTemplateVersion)

	schemas := root.Group("/schemas/:subject")
	schemas.GET("", h.listSchemaVersions)
	schemas.GET("/versions/:version", h.getSchemaVersion)
	schemas.POST("", h.auth, h.registerSchema)
	schemas.DELETE("/versions/:version", h.auth, h.deleteSchemaVersion)

	transformations := root.Group("/transformations")
	transformations.GET("", h.listTransformations)
	transformations.GET("/:id", h.getTransformation)
	transformations.PUT("/:id", h.auth, h.putTransformation)
	transformations.DELETE("/:id", h.auth, h.deleteTransformation)
}
