// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrConflict signals that an operation
// cannot proceed because an overlapping active reservation already
// occupies the requested window.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as booking a space over a window that an
// active reservation already covers, or deleting a space that still
// has pending or confirmed reservations. Handlers should translate
// this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a referenced entity does not exist.
// Repositories return it where absence is part of the contract
// instead of leaking sql.ErrNoRows. Handlers should translate it
// into an HTTP 404 response.
var ErrNotFound = errors.New("not found")
