// Package util provides utility functions and types shared across the
// transformation service.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., NotFoundError, TransformationError). Each
//     type implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidExpression = errors.New("invalid expression")
	ErrTransformFailed   = errors.New("transformation failed")
	ErrTimeout           = errors.New("timeout")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrStorageUnavail    = errors.New("storage unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConfigInvalid     = errors.New("invalid configuration")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// ValidationError represents a validation failure on caller-supplied input.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s (fields: %v)", e.Message, e.Fields)
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: make(map[string]string)}
}

// NewValidationErrorWithFields creates a new ValidationError with field errors.
func NewValidationErrorWithFields(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// AddField adds a field error.
func (e *ValidationError) AddField(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// NotFoundError identifies a missing resource by kind and key.
type NotFoundError struct {
	Resource string
	Key      string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// Is checks if the error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	_, ok := target.(*NotFoundError)
	return ok
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// ConflictError represents an operation rejected because it would violate
// a state invariant, such as deleting an active template version.
type ConflictError struct {
	Resource string
	Key      string
	Reason   string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s: %s", e.Resource, e.Key, e.Reason)
}

// Is checks if the error matches the target.
func (e *ConflictError) Is(target error) bool {
	if target == ErrConflict {
		return true
	}
	_, ok := target.(*ConflictError)
	return ok
}

// NewConflictError creates a new ConflictError.
func NewConflictError(resource, key, reason string) *ConflictError {
	return &ConflictError{Resource: resource, Key: key, Reason: reason}
}

// UnsupportedEngineError represents an unknown transformation engine tag.
type UnsupportedEngineError struct {
	Tag string
}

// Error implements the error interface.
func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("unsupported transformation engine %q", e.Tag)
}

// Is checks if the error matches the target.
func (e *UnsupportedEngineError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*UnsupportedEngineError)
	return ok
}

// NewUnsupportedEngineError creates a new UnsupportedEngineError.
func NewUnsupportedEngineError(tag string) *UnsupportedEngineError {
	return &UnsupportedEngineError{Tag: tag}
}

// TransformationError represents a failure while applying a transformation.
// Step is set when the failure happened inside a named pipeline step.
type TransformationError struct {
	Engine  string
	Step    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *TransformationError) Error() string {
	msg := fmt.Sprintf("%s transformation failed: %s", e.Engine, e.Message)
	if e.Step != "" {
		msg = fmt.Sprintf("%s transformation failed at step %q: %s", e.Engine, e.Step, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TransformationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *TransformationError) Is(target error) bool {
	if target == ErrTransformFailed {
		return true
	}
	_, ok := target.(*TransformationError)
	return ok
}

// NewTransformationError creates a new TransformationError.
func NewTransformationError(engine, message string, cause error) *TransformationError {
	return &TransformationError{Engine: engine, Message: message, Cause: cause}
}

// NewStepError creates a TransformationError for a named pipeline step.
func NewStepError(engine, step, message string, cause error) *TransformationError {
	return &TransformationError{Engine: engine, Step: step, Message: message, Cause: cause}
}

// NoMatchingRouteError is returned by the routing engine when no condition
// matched and no default transformation is configured.
type NoMatchingRouteError struct {
	Routes int
}

// Error implements the error interface.
func (e *NoMatchingRouteError) Error() string {
	return fmt.Sprintf("no matching route among %d route(s) and no default transformation configured", e.Routes)
}

// Is checks if the error matches the target.
func (e *NoMatchingRouteError) Is(target error) bool {
	if target == ErrTransformFailed {
		return true
	}
	_, ok := target.(*NoMatchingRouteError)
	return ok
}

// NewNoMatchingRouteError creates a new NoMatchingRouteError.
func NewNoMatchingRouteError(routes int) *NoMatchingRouteError {
	return &NoMatchingRouteError{Routes: routes}
}

// ExpressionError represents a malformed or rejected engine payload.
type ExpressionError struct {
	Engine  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid %s expression: %s: %v", e.Engine, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid %s expression: %s", e.Engine, e.Message)
}

// Unwrap returns the underlying error.
func (e *ExpressionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ExpressionError) Is(target error) bool {
	if target == ErrInvalidExpression {
		return true
	}
	_, ok := target.(*ExpressionError)
	return ok
}

// NewExpressionError creates a new ExpressionError.
func NewExpressionError(engine, message string, cause error) *ExpressionError {
	return &ExpressionError{Engine: engine, Message: message, Cause: cause}
}

// TimeoutError represents a timeout error.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	Cause     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v during %s", e.Duration, e.Operation)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok || errors.Is(e.Cause, target)
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// RateLimitError represents a rate limit exceeded error.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d, retry after: %v)", e.Limit, e.RetryAfter)
}

// Is checks if the error matches the target.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimited {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(limit int, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Limit: limit, RetryAfter: retryAfter}
}

// CircuitOpenError represents a circuit breaker open error.
type CircuitOpenError struct {
	Name  string
	State string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is %s", e.Name, e.State)
}

// Is checks if the error matches the target.
func (e *CircuitOpenError) Is(target error) bool {
	if target == ErrCircuitOpen {
		return true
	}
	_, ok := target.(*CircuitOpenError)
	return ok
}

// NewCircuitOpenError creates a new CircuitOpenError.
func NewCircuitOpenError(name, state string) *CircuitOpenError {
	return &CircuitOpenError{Name: name, State: state}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Timeouts and storage connectivity failures are retryable
	if errors.Is(err, ErrTimeout) {
		return true
	}

	return errors.Is(err, ErrStorageUnavail)
}

// IsClientError returns true if the error is a client error (4xx).
func IsClientError(err error) bool {
	if err == nil {
		return false
	}

	// Transformation failures report as server errors even when caused by
	// a missing catalog entry, so they are checked before not-found.
	if errors.Is(err, ErrTransformFailed) {
		return false
	}

	if errors.Is(err, ErrNotFound) {
		return true
	}

	if errors.Is(err, ErrConflict) {
		return true
	}

	if errors.Is(err, ErrInvalidInput) {
		return true
	}

	if errors.Is(err, ErrInvalidExpression) {
		return true
	}

	if errors.Is(err, ErrUnauthorized) {
		return true
	}

	return errors.Is(err, ErrRateLimited)
}

// IsServerError returns true if the error is a server error (5xx).
func IsServerError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTransformFailed) {
		return true
	}

	if errors.Is(err, ErrStorageUnavail) {
		return true
	}

	if errors.Is(err, ErrCircuitOpen) {
		return true
	}

	return errors.Is(err, ErrTimeout)
}
