// Package util provides utility functions and types for the
// transformation service.
//
// This package contains shared utilities used across the service
// including context helpers, error types, and validation functions.
//
// # Context Helpers
//
// Context utilities for request-scoped data:
//
//	ctx = util.ContextWithRequestID(ctx, "req-123")
//	requestID := util.RequestIDFromContext(ctx)
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - ConfigError: configuration validation errors
//   - TransformationError: failures while applying transformations
//   - ConflictError: lifecycle operations rejected by state invariants
//   - Common sentinel errors: ErrNotFound, ErrConflict, etc.
//
// # Validation
//
// Input validation helpers for URLs, durations, and identifiers:
//
//	err := util.ValidateURL("redis://localhost:6379")
//	err := util.ValidateIdentifier("orders-consumer", "consumerId")
package util
