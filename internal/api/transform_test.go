package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transformPath = "/api/consumers/billing-app/subjects/orders/transform"

func TestHandler_Transform_ActiveVersion(t *testing.T) {
	s := newTestStack(t)
	s.createTemplate(t, gin.H{
		"version":    "1.0.0",
		"engine":     "direct",
		"expression": `{"id": doc.id, "status": doc.status}`,
	})

	w := doRequest(t, s.router, http.MethodPost, transformPath, gin.H{
		"canonicalJson": gin.H{"id": "order-1", "status": "open"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TransformResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "orders", resp.Subject)
	assert.Equal(t, "1.0.0", resp.TemplateVersion)
	assert.Equal(t, "direct", resp.Engine)
	assert.Empty(t, resp.StepErrors)
	assert.Equal(t, "order-1", resp.TransformedJSON["id"])
	assert.Equal(t, "open", resp.TransformedJSON["status"])
}

func TestHandler_Transform_ExplicitVersion(t *testing.T) {
	s := newTestStack(t)
	s.createTemplate(t, gin.H{
		"version":    "1.0.0",
		"engine":     "direct",
		"expression": `{"generation": "first"}`,
	})
	s.createTemplate(t, gin.H{
		"version":    "2.0.0",
		"engine":     "direct",
		"expression": `{"generation": "second"}`,
	})

	// 2.0.0 is active; the versioned endpoint still reaches 1.0.0.
	w := doRequest(t, s.router, http.MethodPost, transformPath+"/versions/1.0.0", gin.H{
		"canonicalJson": gin.H{},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TransformResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "1.0.0", resp.TemplateVersion)
	assert.Equal(t, "first", resp.TransformedJSON["generation"])
}

func TestHandler_Transform_EmptyDocument(t *testing.T) {
	s := newTestStack(t)
	s.createTemplate(t, gin.H{
		"version":    "1.0.0",
		"engine":     "direct",
		"expression": `{"constant": 42}`,
	})

	w := doRequest(t, s.router, http.MethodPost, transformPath, gin.H{
		"canonicalJson": gin.H{},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TransformResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, float64(42), resp.TransformedJSON["constant"])
}

func TestHandler_Transform_MissingCanonicalJSON(t *testing.T) {
	s := newTestStack(t)

	w := doRequest(t, s.router, http.MethodPost, transformPath, gin.H{
		"payload": gin.H{"id": "order-1"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindValidationFailure, errorKind(t, w))
}

func TestHandler_Transform_MalformedBody(t *testing.T) {
	s := newTestStack(t)

	w := doRequest(t, s.router, http.MethodPost, transformPath, `{"canonicalJson": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidArgument, errorKind(t, w))
}

func TestHandler_Transform_UnknownPair(t *testing.T) {
	s := newTestStack(t)

	w := doRequest(t, s.router, http.MethodPost, transformPath, gin.H{
		"canonicalJson": gin.H{},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, KindResourceNotFound, errorKind(t, w))
}

func TestHandler_Transform_UnknownVersion(t *testing.T) {
	s := newTestStack(t)
	s.createTemplate(t, gin.H{
		"version":    "1.0.0",
		"engine":     "direct",
		"expression": `{"id": doc.id}`,
	})

	w := doRequest(t, s.router, http.MethodPost, transformPath+"/versions/9.9.9", gin.H{
		"canonicalJson": gin.H{},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, KindResourceNotFound, errorKind(t, w))
}

func TestHandler_Transform_EvaluationFailure(t *testing.T) {
	s := newTestStack(t)
	s.createTemplate(t, gin.H{
		"version":    "1.0.0",
		"engine":     "direct",
		"expression": `{"value": doc.never.there}`,
	})

	w := doRequest(t, s.router, http.MethodPost, transformPath, gin.H{
		"canonicalJson": gin.H{"id": "order-1"},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, KindTransformationFailure, resp.Error.Kind)
	assert.NotEmpty(t, resp.Error.Message)
}

func TestHandler_Transform_PipelineStepErrors(t *testing.T) {
	s := newTestStack(t)
	s.createTemplate(t, gin.H{
		"version": "1.0.0",
		"engine":  "pipeline",
		"pipelineConfig": gin.H{
			"type": "pipeline",
			"steps": []gin.H{
				{"name": "core", "transformationId": "order-core"},
				{"name": "broken", "transformationId": "explode", "continueOnError": true},
				{"name": "flags", "transformationId": "order-flags"},
			},
		},
	})

	w := doRequest(t, s.router, http.MethodPost, transformPath, gin.H{
		"canonicalJson": gin.H{"id": "order-1", "status": "open"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TransformResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "pipeline", resp.Engine)
	assert.Equal(t, true, resp.TransformedJSON["priority"])
	require.Len(t, resp.StepErrors, 1)
	assert.Equal(t, "broken", resp.StepErrors[0].Step)
	assert.NotEmpty(t, resp.StepErrors[0].Message)
}

func TestHandler_ValidateTemplate(t *testing.T) {
	s := newTestStack(t)

	tests := []struct {
		name      string
		body      gin.H
		wantValid bool
	}{
		{
			name:      "valid direct expression",
			body:      gin.H{"engine": "direct", "expression": `{"id": doc.id}`},
			wantValid: true,
		},
		{
			name:      "broken direct expression",
			body:      gin.H{"engine": "direct", "expression": `{"id": doc.`},
			wantValid: false,
		},
		{
			name: "valid router config",
			body: gin.H{"engine": "router", "routerConfig": gin.H{
				"type": "router",
				"routes": []gin.H{
					{"condition": "$.type == 'user'", "transformationId": "order-core"},
				},
			}},
			wantValid: true,
		},
		{
			name: "pipeline without steps",
			body: gin.H{"engine": "pipeline", "pipelineConfig": gin.H{
				"type":  "pipeline",
				"steps": []gin.H{},
			}},
			wantValid: false,
		},
		{
			name:      "direct with router payload",
			body:      gin.H{"engine": "direct", "routerConfig": gin.H{"type": "router"}},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s.router, http.MethodPost, "/api/templates/validate", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp ValidateTemplateResponse
			decodeBody(t, w, &resp)
			assert.Equal(t, tt.wantValid, resp.Valid)
			if !tt.wantValid {
				assert.NotEmpty(t, resp.Message)
			}
		})
	}
}

func TestHandler_ValidateTemplate_UnknownEngine(t *testing.T) {
	s := newTestStack(t)

	w := doRequest(t, s.router, http.MethodPost, "/api/templates/validate", gin.H{
		"engine":     "graphql",
		"expression": "{}",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidArgument, errorKind(t, w))
}
