package dao

import "errors"

// Store errors; callers match them with errors.Is.
var (
	ErrNotFound  = errors.New("dao: not found")
	ErrInvalidID = errors.New("dao: invalid id")
	ErrNilEntity = errors.New("dao: nil entity")
	// ErrConflict reports a write against a stale version or an insert over
	// an existing key.
	ErrConflict = errors.New("dao: version conflict")
)
