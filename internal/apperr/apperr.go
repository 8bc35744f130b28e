// Package apperr contains the sentinel errors shared by every layer, and their
// mapping to wire codes and HTTP statuses.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated indicates a missing or invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the actor lacks rights on the entity.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation indicates a malformed request or an illegal state transition.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a unique constraint violation (e.g., username taken).
	ErrConflict = errors.New("already exists")

	// ErrUpstream indicates the directory store or object storage failed.
	ErrUpstream = errors.New("upstream failure")
)

// Code returns the stable wire code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Internal causes are only
// exposed when expose is true (development mode).
func Message(err error, expose bool) string {
	if Code(err) == "internal" && !expose {
		return "internal server error"
	}
	return err.Error()
}
