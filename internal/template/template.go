// Package template manages versioned transformation templates and their
// activation lifecycle. A template binds a (consumer, subject) pair to
// one engine and its payload; per pair exactly one version is active at
// a time and serves transform requests that do not name a version.
package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/canonmorph/canonmorph/internal/engine"
	"github.com/canonmorph/canonmorph/internal/util"
)

// Template is one version of a consumer's transformation for a subject.
//
// Expression always carries the engine payload. Configuration mirrors it
// for router and pipeline templates and is empty for direct ones, which
// keeps the persisted two-column layout readable.
type Template struct {
	ConsumerID     string      `json:"consumerId"`
	Subject        string      `json:"subject"`
	Version        string      `json:"version"`
	Engine         engine.Type `json:"engine"`
	Expression     string      `json:"expression"`
	Configuration  string      `json:"configuration,omitempty"`
	InputSchemaID  string      `json:"inputSchemaId,omitempty"`
	OutputSchemaID string      `json:"outputSchemaId,omitempty"`
	Active         bool        `json:"active"`
	Description    string      `json:"description,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Validate checks the fields that every stored template must carry.
// Engine payload validation is the engines' concern and happens before
// a template reaches the store.
func (t *Template) Validate() error {
	if err := util.ValidateIdentifier(t.ConsumerID, "consumerId"); err != nil {
		return util.NewValidationError(err.Error())
	}

	if err := util.ValidateIdentifier(t.Subject, "subject"); err != nil {
		return util.NewValidationError(err.Error())
	}

	if t.Version == "" {
		return util.NewValidationError("template version is required")
	}
	if _, err := semver.NewVersion(t.Version); err != nil {
		return util.NewValidationError(
			fmt.Sprintf("version %s is not a valid semantic version", t.Version))
	}

	if _, err := engine.ParseType(string(t.Engine)); err != nil {
		return err
	}

	if strings.TrimSpace(t.Expression) == "" {
		return util.NewValidationError("template expression is required")
	}

	return nil
}

// Coordinate returns the template's display key.
func (t *Template) Coordinate() string {
	return versionKey(t.ConsumerID, t.Subject, t.Version)
}

// pairKey identifies a (consumer, subject) pair. Identifiers cannot
// contain '|', so the key is unambiguous.
func pairKey(consumerID, subject string) string {
	return consumerID + "|" + subject
}

// versionKey is the display form of a template coordinate.
func versionKey(consumerID, subject, version string) string {
	return fmt.Sprintf("%s/%s@%s", consumerID, subject, version)
}
