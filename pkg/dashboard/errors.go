package dashboard

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
)

// APIError is the JSON body of every failed API request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromDomainError maps a pkg/errors sentinel onto an API error. message
// describes the failed operation.
func FromDomainError(message string, err error) *APIError {
	apiErr := &APIError{Message: message, Details: err.Error()}
	switch {
	case viqerrors.IsValidation(err):
		apiErr.Status, apiErr.Code = http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	case viqerrors.IsNotFound(err):
		apiErr.Status, apiErr.Code = http.StatusNotFound, "NOT_FOUND"
	case viqerrors.IsUnauthorized(err):
		apiErr.Status, apiErr.Code = http.StatusUnauthorized, "UNAUTHORIZED"
	case viqerrors.IsForbidden(err):
		apiErr.Status, apiErr.Code = http.StatusForbidden, "FORBIDDEN"
	case viqerrors.IsInvalidState(err):
		apiErr.Status, apiErr.Code = http.StatusConflict, "CONFLICT"
	case viqerrors.IsTransport(err):
		apiErr.Status, apiErr.Code = http.StatusBadGateway, "BACKEND_UNAVAILABLE"
	default:
		apiErr.Status, apiErr.Code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}
	return apiErr
}

// ErrorHandler renders every handler error as an APIError.
// Usage: e.HTTPErrorHandler = dashboard.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
