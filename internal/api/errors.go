package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canonmorph/canonmorph/internal/util"
)

// Error kinds carried in error response bodies. Clients key on these,
// not on the message text.
const (
	KindResourceNotFound      = "RESOURCE_NOT_FOUND"
	KindConflict              = "CONFLICT"
	KindInvalidArgument       = "INVALID_ARGUMENT"
	KindValidationFailure     = "VALIDATION_FAILURE"
	KindTransformationFailure = "TRANSFORMATION_FAILURE"
	KindInternal              = "INTERNAL"
)

// ErrorBody is the error payload inside an ErrorResponse.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the body returned for every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// classify maps an error from the inner packages to an HTTP status and
// a stable error kind. Transformation failures are checked before
// not-found: a missing catalog entry inside a pipeline run is the
// template's fault, not the caller's.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, util.ErrTransformFailed):
		return http.StatusInternalServerError, KindTransformationFailure

	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound, KindResourceNotFound

	case errors.Is(err, util.ErrConflict):
		return http.StatusConflict, KindConflict

	case errors.Is(err, util.ErrInvalidExpression):
		return http.StatusBadRequest, KindValidationFailure

	case errors.Is(err, util.ErrInvalidInput):
		// ValidationError means the request content broke a rule;
		// anything else invalid is an argument the service does not
		// recognize at all.
		var validationErr *util.ValidationError
		if errors.As(err, &validationErr) {
			return http.StatusBadRequest, KindValidationFailure
		}
		return http.StatusBadRequest, KindInvalidArgument

	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// writeError renders err as an ErrorResponse and aborts the request.
func writeError(c *gin.Context, err error) {
	status, kind := classify(err)

	body := ErrorBody{Kind: kind, Message: err.Error()}
	if cause := errors.Unwrap(err); cause != nil {
		body.Cause = cause.Error()
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}

// writeBindError renders a request decoding failure. The raw binding
// error goes into the cause so callers can see what the decoder choked
// on.
func writeBindError(c *gin.Context, err error) {
	body := ErrorBody{
		Kind:    KindInvalidArgument,
		Message: "request body is not valid JSON for this endpoint",
	}
	if err != nil {
		body.Cause = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: body})
}
