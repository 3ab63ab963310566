package loginsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes used in the error envelope.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidIdentifier    = "invalid_identifier"
	ErrorCodeAuthenticationFailed = "authentication_failed"
	ErrorCodeMissingSession       = "missing_session"
	ErrorCodeIncorrectCode        = "incorrect_code"
	ErrorCodeCodeExpired          = "code_expired"
	ErrorCodeRateLimited          = "rate_limited"
	ErrorCodeServerError          = "server_error"
	ErrorCodeNotReady             = "not_ready"
)

// APIError is the error envelope as a Go error. The server uses it to
// write responses; the client returns it when a request fails.
type APIError struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the machine-readable error code.
	Code string `json:"error"`

	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`

	// RetryIn is set on rate-limit failures: seconds until the window resets.
	RetryIn int `json:"retry_in,omitempty"`

	// AttemptsLeft is set on incorrect-code failures when disclosed.
	AttemptsLeft *int `json:"attempts_left,omitempty"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// WriteError writes this error to an HTTP response writer. Rate-limit
// failures also get a Retry-After header.
func (e *APIError) WriteError(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if e.RetryIn > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", e.RetryIn))
	}
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// Predefined errors for the fixed failure modes. Handlers copy these and
// fill in per-request fields rather than mutating the shared values.
var (
	// ErrInvalidRequest is returned for a malformed body or missing fields.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidIdentifier is returned when the identifier fails syntactic
	// validation.
	ErrInvalidIdentifier = &APIError{
		StatusCode:  http.StatusUnprocessableEntity,
		Code:        ErrorCodeInvalidIdentifier,
		Description: "the identifier is not valid",
	}

	// ErrAuthenticationFailed is the generic phase-1 failure. It never
	// discloses whether the identifier exists.
	ErrAuthenticationFailed = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeAuthenticationFailed,
		Description: "authentication failed",
	}

	// ErrMissingSession is returned when phase 2 runs without a pending
	// login. The client must restart at phase 1.
	ErrMissingSession = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeMissingSession,
		Description: "no login in progress, start over",
	}

	// ErrIncorrectCode is returned when the submitted code does not match.
	ErrIncorrectCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeIncorrectCode,
		Description: "the code is incorrect",
	}

	// ErrCodeExpired is returned when the code lapsed; a replacement has
	// already been sent when the client sees this.
	ErrCodeExpired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeCodeExpired,
		Description: "the code expired, a new one has been sent",
	}

	// ErrRateLimited is returned when the attempt budget is exhausted.
	ErrRateLimited = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeRateLimited,
		Description: "too many attempts",
	}

	// ErrServerError is the catch-all internal failure.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	// ErrNotReady is returned while a dependency is unavailable.
	ErrNotReady = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeNotReady,
		Description: "service temporarily unavailable, try again",
	}
)
