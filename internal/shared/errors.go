package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates a missing or invalid credential. The
	// message is intentionally generic: callers must not leak which check
	// failed.
	ErrUnauthenticated = errors.New("invalid session")
	// ErrPermissionDenied indicates a valid principal lacking the required
	// permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoMembership indicates an authenticated user with no tenant
	// membership on record.
	ErrNoMembership = errors.New("no tenant membership")
)
