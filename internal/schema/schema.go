// Package schema stores and resolves the schema records that
// transformation templates bind to.
//
// Records are versioned per (subject, type, consumerId) and referenced
// from templates through References. A Reference with an explicit version
// resolves to the exact record; without one it resolves to the highest
// semantic version registered for the subject.
package schema

import (
	"encoding/json"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/canonmorph/canonmorph/internal/util"
)

// Type classifies a schema record.
type Type string

const (
	// TypeCanonical is the shared input document schema for a subject.
	TypeCanonical Type = "canonical"

	// TypeConsumerOutput is the per-consumer output document schema.
	TypeConsumerOutput Type = "consumer-output"
)

// Types returns all supported schema types.
func Types() []Type {
	return []Type{TypeCanonical, TypeConsumerOutput}
}

// ParseType parses a schema type tag. Unknown tags are rejected.
func ParseType(tag string) (Type, error) {
	switch Type(tag) {
	case TypeCanonical:
		return TypeCanonical, nil
	case TypeConsumerOutput:
		return TypeConsumerOutput, nil
	default:
		return "", util.NewValidationError(
			"schema type must be one of: canonical, consumer-output")
	}
}

// Record is a stored schema version.
type Record struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Type    Type   `json:"type"`

	// ConsumerID is set for consumer-output records and empty for
	// canonical ones.
	ConsumerID string `json:"consumerId,omitempty"`

	// Version is a semantic version string, unique per
	// (subject, type, consumerId).
	Version string `json:"version"`

	// Definition is the JSON Schema document.
	Definition json.RawMessage `json:"definition"`

	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks the record fields ahead of registration.
func (r *Record) Validate() error {
	if err := util.ValidateIdentifier(r.Subject, "subject"); err != nil {
		return util.NewValidationError(err.Error())
	}

	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}

	switch r.Type {
	case TypeCanonical:
		if r.ConsumerID != "" {
			return util.NewValidationError(
				"canonical schemas must not set consumerId")
		}
	case TypeConsumerOutput:
		if r.ConsumerID == "" {
			return util.NewValidationError(
				"consumer-output schemas require consumerId")
		}
		if err := util.ValidateIdentifier(r.ConsumerID, "consumerId"); err != nil {
			return util.NewValidationError(err.Error())
		}
	}

	if r.Version == "" {
		return util.NewValidationError("version is required")
	}
	if _, err := semver.NewVersion(r.Version); err != nil {
		return util.NewValidationError(
			"version " + r.Version + " is not a valid semantic version")
	}

	if len(r.Definition) == 0 {
		return util.NewValidationError("definition is required")
	}
	if !json.Valid(r.Definition) {
		return util.NewValidationError("definition must be valid JSON")
	}

	return nil
}

// Reference points at a schema record. An empty Version selects the
// highest registered semantic version at resolution time.
type Reference struct {
	Subject    string `json:"subject"`
	ConsumerID string `json:"consumerId,omitempty"`
	Version    string `json:"version,omitempty"`
}

// NewCanonicalReference builds a reference to a canonical schema.
func NewCanonicalReference(subject, version string) Reference {
	return Reference{Subject: subject, Version: version}
}

// NewConsumerOutputReference builds a reference to a consumer-output
// schema.
func NewConsumerOutputReference(subject, consumerID, version string) Reference {
	return Reference{Subject: subject, ConsumerID: consumerID, Version: version}
}
