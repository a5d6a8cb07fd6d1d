package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canonmorph/canonmorph/internal/template"
)

func (h *Handler) createTemplateVersion(c *gin.Context) {
	var req template.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	created, err := h.templates.CreateVersion(c.Request.Context(),
		c.Param("consumerId"), c.Param("subject"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listTemplateVersions(c *gin.Context) {
	versions, err := h.templates.ListVersions(c.Request.Context(),
		c.Param("consumerId"), c.Param("subject"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"templates": versions,
		"count":     len(versions),
	})
}

func (h *Handler) getActiveTemplate(c *gin.Context) {
	tmpl, err := h.templates.GetActive(c.Request.Context(),
		c.Param("consumerId"), c.Param("subject"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) getTemplateVersion(c *gin.Context) {
	tmpl, err := h.templates.GetVersion(c.Request.Context(),
		c.Param("consumerId"), c.Param("subject"), c.Param("version"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) activateTemplateVersion(c *gin.Context) {
	h.switchActivation(c, h.templates.Activate)
}

func (h *Handler) deactivateTemplateVersion(c *gin.Context) {
	h.switchActivation(c, h.templates.Deactivate)
}

// switchActivation runs an activation transition and returns the
// refreshed version so callers see the resulting state without a
// second request.
func (h *Handler) switchActivation(c *gin.Context, transition func(ctx context.Context, consumerID, subject, version string) error) {
	consumerID := c.Param("consumerId")
	subject := c.Param("subject")
	version := c.Param("version")

	if err := transition(c.Request.Context(), consumerID, subject, version); err != nil {
		writeError(c, err)
		return
	}

	tmpl, err := h.templates.GetVersion(c.Request.Context(), consumerID, subject, version)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) deleteTemplateVersion(c *gin.Context) {
	err := h.templates.Delete(c.Request.Context(),
		c.Param("consumerId"), c.Param("subject"), c.Param("version"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
