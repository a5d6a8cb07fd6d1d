package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/schema"
	"github.com/canonmorph/canonmorph/internal/util"
)

// RegisterSchemaRequest is the body of the schema registration
// endpoint. The subject comes from the path.
type RegisterSchemaRequest struct {
	Type        string          `json:"type"`
	ConsumerID  string          `json:"consumerId,omitempty"`
	Version     string          `json:"version"`
	Definition  json.RawMessage `json:"definition"`
	Description string          `json:"description,omitempty"`
}

// registerSchema stores a new schema version. When the subject already
// has versions and a compatibility mode is configured, the new
// definition must pass the compatibility check against the latest one.
func (h *Handler) registerSchema(c *gin.Context) {
	var req RegisterSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	schemaType, err := schema.ParseType(req.Type)
	if err != nil {
		writeError(c, err)
		return
	}

	record := schema.Record{
		Subject:     c.Param("subject"),
		Type:        schemaType,
		ConsumerID:  req.ConsumerID,
		Version:     req.Version,
		Definition:  req.Definition,
		Description: req.Description,
	}

	if h.compatMode != schema.ModeNone {
		if err := h.checkCompatibility(c, record); err != nil {
			writeError(c, err)
			return
		}
	}

	created, err := h.schemas.Create(c.Request.Context(), record)
	if err != nil {
		writeError(c, err)
		return
	}

	h.logger.Info("schema version registered",
		observability.String("subject", created.Subject),
		observability.String("type", string(created.Type)),
		observability.String("version", created.Version),
	)

	c.JSON(http.StatusCreated, created)
}

// checkCompatibility compares the candidate record against the latest
// stored version of its coordinate. Subjects without versions pass.
func (h *Handler) checkCompatibility(c *gin.Context, record schema.Record) error {
	existing, err := h.schemas.ListVersions(c.Request.Context(),
		record.Subject, record.Type, record.ConsumerID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	// ListVersions orders ascending, so the latest version is last.
	latest := existing[len(existing)-1]
	result, err := h.compat.Check(c.Request.Context(), latest, record, h.compatMode)
	if err != nil {
		return err
	}
	if !result.Compatible {
		reason := "incompatible with version " + latest.Version
		if len(result.Messages) > 0 {
			reason += ": " + result.Messages[0]
		}
		return util.NewConflictError("schema", record.Subject, reason)
	}
	return nil
}

func (h *Handler) listSchemaVersions(c *gin.Context) {
	schemaType, consumerID, err := schemaCoordinate(c)
	if err != nil {
		writeError(c, err)
		return
	}

	records, err := h.schemas.ListVersions(c.Request.Context(),
		c.Param("subject"), schemaType, consumerID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subject": c.Param("subject"),
		"schemas": records,
		"count":   len(records),
	})
}

func (h *Handler) getSchemaVersion(c *gin.Context) {
	schemaType, consumerID, err := schemaCoordinate(c)
	if err != nil {
		writeError(c, err)
		return
	}

	record, err := h.schemas.Get(c.Request.Context(),
		c.Param("subject"), schemaType, consumerID, c.Param("version"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) deleteSchemaVersion(c *gin.Context) {
	schemaType, consumerID, err := schemaCoordinate(c)
	if err != nil {
		writeError(c, err)
		return
	}

	record, err := h.schemas.Get(c.Request.Context(),
		c.Param("subject"), schemaType, consumerID, c.Param("version"))
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.schemas.Delete(c.Request.Context(), record.ID); err != nil {
		writeError(c, err)
		return
	}

	h.logger.Info("schema version deleted",
		observability.String("subject", record.Subject),
		observability.String("type", string(record.Type)),
		observability.String("version", record.Version),
	)

	c.Status(http.StatusNoContent)
}

// schemaCoordinate reads the schema type and consumer id from the query
// string. The type defaults to canonical.
func schemaCoordinate(c *gin.Context) (schema.Type, string, error) {
	tag := c.DefaultQuery("type", string(schema.TypeCanonical))
	schemaType, err := schema.ParseType(tag)
	if err != nil {
		return "", "", err
	}
	return schemaType, c.Query("consumerId"), nil
}
