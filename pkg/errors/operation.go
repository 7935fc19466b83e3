package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a classified client operation error.
type ErrorCode string

const (
	ErrTimeout          ErrorCode = "timeout"
	ErrContextCancelled ErrorCode = "context_cancelled"
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	ErrCodeForbidden    ErrorCode = "forbidden"
	ErrCodeNotFound     ErrorCode = "not_found"
	ErrCodeValidation   ErrorCode = "validation"
	ErrUnreachable      ErrorCode = "unreachable"
	ErrServerError      ErrorCode = "server_error"
	ErrBadResponse      ErrorCode = "bad_response"
	ErrRequestFailed    ErrorCode = "request_failed"
)

// statusCoder is implemented by errors that carry an HTTP status code.
type statusCoder interface {
	StatusCode() int
}

// OperationError is a structured error for a failed backend operation.
type OperationError struct {
	Code    ErrorCode
	Op      string
	Status  int
	Message string
	Cause   error
}

func (e *OperationError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Code, e.Op, e.Status, e.Message)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects an error and returns an *OperationError with the appropriate code.
// If the error doesn't match any known pattern, it returns an OperationError with ErrRequestFailed.
func ClassifyError(err error, op string) *OperationError {
	if err == nil {
		return nil
	}

	oe := &OperationError{
		Op:      op,
		Cause:   err,
		Message: err.Error(),
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		oe.Status = sc.StatusCode()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		oe.Code = ErrTimeout
		oe.Message = "operation timed out"
		return oe
	case errors.Is(err, context.Canceled):
		oe.Code = ErrContextCancelled
		oe.Message = "operation cancelled"
		return oe
	case errors.Is(err, ErrUnauthorized):
		oe.Code = ErrCodeUnauthorized
		return oe
	case errors.Is(err, ErrForbidden):
		oe.Code = ErrCodeForbidden
		return oe
	case errors.Is(err, ErrNotFound):
		oe.Code = ErrCodeNotFound
		return oe
	case errors.Is(err, ErrValidation):
		oe.Code = ErrCodeValidation
		return oe
	}

	if oe.Status >= 500 {
		oe.Code = ErrServerError
		return oe
	}

	lower := strings.ToLower(oe.Message)

	// Dial failures surface from net/http as plain wrapped errors.
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") || strings.Contains(lower, "connection reset") {
		oe.Code = ErrUnreachable
		return oe
	}

	if strings.Contains(lower, "decoding") || strings.Contains(lower, "invalid character") ||
		strings.Contains(lower, "unexpected end of json") {
		oe.Code = ErrBadResponse
		return oe
	}

	oe.Code = ErrRequestFailed
	return oe
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Code == ErrTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsErrorRetryable returns true if the error is likely transient.
// This function checks the error code using the ErrorCodeRegistry.
func IsErrorRetryable(err error) bool {
	var oe *OperationError
	if errors.As(err, &oe) {
		if info, ok := ErrorCodeRegistry[oe.Code]; ok {
			return info.Retryable
		}
		return false
	}
	return false
}

// Hint returns a one-line user-facing message with a suggested action for err.
func Hint(err error, op string) string {
	oe := ClassifyError(err, op)
	if oe == nil {
		return ""
	}
	return fmt.Sprintf("%s. %s", GetDescription(oe.Code), GetSuggestedAction(oe.Code))
}
