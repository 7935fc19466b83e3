package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrTimeout: {
		Code:            ErrTimeout,
		Retryable:       true,
		Description:     "Request exceeded time limit",
		SuggestedAction: "Raise the request timeout: viq --timeout 10m, or viq config set timeout 10m",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Retryable:       false,
		Description:     "Operation cancelled by user",
		SuggestedAction: "No action needed if the cancellation was intentional",
	},
	ErrCodeUnauthorized: {
		Code:            ErrCodeUnauthorized,
		Retryable:       false,
		Description:     "Missing, expired or rejected access token",
		SuggestedAction: "Log in again: viq auth login",
	},
	ErrCodeForbidden: {
		Code:            ErrCodeForbidden,
		Retryable:       false,
		Description:     "Account is not allowed to perform this operation",
		SuggestedAction: "Check your account permissions with the backend administrator",
	},
	ErrCodeNotFound: {
		Code:            ErrCodeNotFound,
		Retryable:       false,
		Description:     "Report or resource does not exist",
		SuggestedAction: "List available reports: viq reports list",
	},
	ErrCodeValidation: {
		Code:            ErrCodeValidation,
		Retryable:       false,
		Description:     "Backend rejected the request parameters",
		SuggestedAction: "Check the report id and arguments, then run the command again",
	},
	ErrUnreachable: {
		Code:            ErrUnreachable,
		Retryable:       true,
		Description:     "Backend could not be reached",
		SuggestedAction: "Check the backend address: viq config show, then viq status",
	},
	ErrServerError: {
		Code:            ErrServerError,
		Retryable:       true,
		Description:     "Backend returned a server error",
		SuggestedAction: "Try again later; if it persists, check the backend logs",
	},
	ErrBadResponse: {
		Code:            ErrBadResponse,
		Retryable:       false,
		Description:     "Backend response could not be decoded",
		SuggestedAction: "Verify client and backend versions: viq version",
	},
	ErrRequestFailed: {
		Code:            ErrRequestFailed,
		Retryable:       false,
		Description:     "Unclassified request failure",
		SuggestedAction: "Re-run with --debug for request details",
	},
}

// IsRetryable returns true if the given error code represents a transient error.
// The client never retries on its own; this only shapes the message shown to the user.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Re-run with --debug for more details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
