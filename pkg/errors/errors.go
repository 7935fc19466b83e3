// Package errors provides common domain error types for the viq client.
//
// This package defines sentinel errors for conditions like "not found" or
// "validation failed" that are shared by the backend client, the upload
// queue and the report table. Using typed errors enables consistent error
// handling with errors.Is() checks.
//
// Usage:
//
//	import viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
//
//	// Return a domain error
//	return nil, viqerrors.ErrNotFound
//
//	// Check for domain errors
//	if viqerrors.IsValidation(err) {
//	    // handle a 422 from the backend
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates the backend rejected the request parameters (HTTP 422).
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized indicates the request lacks valid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated user lacks permission.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrTransport indicates a network failure or an unexpected non-2xx response.
	ErrTransport = errors.New("transport error")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthorized reports whether any error in err's chain is ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden reports whether any error in err's chain is ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsTransport reports whether any error in err's chain is ErrTransport.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
