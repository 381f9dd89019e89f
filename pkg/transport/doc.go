// Package transport provides the HTTP plumbing shared by authgate handlers:
// a middleware chain, request ID assignment (X-Request-ID), structured
// access logging via log/slog, panic recovery, and JSON error responses in
// the {"error": {...}} envelope defined in pkg/api.
package transport
