package schema

import (
	"context"
	"strings"

	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// Mode selects the compatibility policy applied when a new schema
// version is registered for an existing subject.
type Mode string

const (
	// ModeBackward requires new schemas to read data written by the
	// previous version.
	ModeBackward Mode = "BACKWARD"

	// ModeForward requires the previous version to read data written
	// by the new schema.
	ModeForward Mode = "FORWARD"

	// ModeFull requires both backward and forward compatibility.
	ModeFull Mode = "FULL"

	// ModeNone disables compatibility checking.
	ModeNone Mode = "NONE"
)

// ParseMode parses a compatibility mode. An empty string selects
// ModeNone.
func ParseMode(tag string) (Mode, error) {
	switch Mode(strings.ToUpper(tag)) {
	case ModeBackward:
		return ModeBackward, nil
	case ModeForward:
		return ModeForward, nil
	case ModeFull:
		return ModeFull, nil
	case ModeNone, "":
		return ModeNone, nil
	default:
		return "", util.NewValidationError(
			"compatibility mode must be one of: BACKWARD, FORWARD, FULL, NONE")
	}
}

// Result is the outcome of a compatibility check.
type Result struct {
	Compatible bool     `json:"compatible"`
	Messages   []string `json:"messages,omitempty"`
}

// Checker decides whether a new schema version may replace an old one
// under a given mode.
type Checker interface {
	Check(ctx context.Context, old, new Record, mode Mode) (Result, error)
}

// allowAllChecker accepts every schema change. A structural JSON Schema
// diff has never been implemented; registration flows still consult the
// checker so a real policy can slot in without touching callers.
type allowAllChecker struct {
	logger observability.Logger
}

// NewAllowAllChecker creates a compatibility checker that accepts every
// change.
func NewAllowAllChecker(logger observability.Logger) Checker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &allowAllChecker{logger: logger}
}

// Check implements Checker.
func (c *allowAllChecker) Check(ctx context.Context, old, new Record, mode Mode) (Result, error) {
	if mode == ModeNone {
		return Result{Compatible: true}, nil
	}

	c.logger.Debug("schema compatibility check",
		observability.String("subject", new.Subject),
		observability.String("oldVersion", old.Version),
		observability.String("newVersion", new.Version),
		observability.String("mode", string(mode)))

	return Result{
		Compatible: true,
		Messages:   []string{"compatibility checking accepts all changes"},
	}, nil
}

var _ Checker = (*allowAllChecker)(nil)
