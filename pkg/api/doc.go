// Package api defines the JSON error envelope authgate writes for rejected
// requests: {"error": {"type", "code", "param", "message", "details"}}.
//
// The package has no dependencies beyond the standard library and performs
// no I/O; pkg/transport does the writing.
package api
