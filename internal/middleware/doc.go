// Package middleware provides the HTTP middleware chain for the
// transformation service: request ID propagation, access logging,
// panic recovery, Prometheus request metrics, rate limiting, and
// authentication.
package middleware
