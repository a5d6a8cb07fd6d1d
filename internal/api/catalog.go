package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canonmorph/canonmorph/internal/catalog"
	"github.com/canonmorph/canonmorph/internal/observability"
)

// PutTransformationRequest is the body of the catalog upsert endpoint.
// The identifier comes from the path.
type PutTransformationRequest struct {
	Expression  string `json:"expression"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) listTransformations(c *gin.Context) {
	entries, err := h.catalog.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transformations": entries,
		"count":           len(entries),
	})
}

func (h *Handler) getTransformation(c *gin.Context) {
	entry, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *Handler) putTransformation(c *gin.Context) {
	var req PutTransformationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	entry := catalog.Entry{
		ID:          c.Param("id"),
		Expression:  req.Expression,
		Description: req.Description,
	}
	if err := h.catalog.Put(c.Request.Context(), entry); err != nil {
		writeError(c, err)
		return
	}

	h.logger.Info("catalog entry stored",
		observability.String("id", entry.ID),
	)

	c.JSON(http.StatusOK, entry)
}

func (h *Handler) deleteTransformation(c *gin.Context) {
	id := c.Param("id")
	if err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	h.logger.Info("catalog entry deleted",
		observability.String("id", id),
	)

	c.Status(http.StatusNoContent)
}
