package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a credential does not exist or is disabled.
	ErrNotFound = errors.New("credential not found")

	// ErrConflict is returned when two credentials share an id.
	ErrConflict = errors.New("credential already exists")
)
