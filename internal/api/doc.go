// Package api exposes the transformation service over HTTP: the
// transform endpoints consumed by the orchestrator, the template
// lifecycle endpoints, the schema registry, and the transformation
// catalog admin surface. Handlers translate the error taxonomy of the
// inner packages into stable error kinds and HTTP status codes.
package api
