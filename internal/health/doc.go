// Package health provides liveness and readiness probe endpoints with
// named dependency checks.
package health
