// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as handlers
// to distinguish between different failure scenarios. For example,
// ErrForbidden indicates that the current user is not authorized to perform
// an operation on a resource owned by someone else, while ErrEmailExists
// signals that the unique email constraint would be violated.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own or manage. Handlers should translate this into
// an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned when registering with an email that already
// belongs to a live (non-deleted) user. Handlers should translate this into
// an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrGymNotFound is returned when a gym does not exist or has been soft
// deleted. Handlers should translate this into an HTTP 404 response.
var ErrGymNotFound = errors.New("gym not found")
