package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidIdentifier reports a syntactically invalid identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier format")

	// ErrAuthenticationFailed is the deliberately generic phase-1 failure.
	// It never discloses whether the identifier exists.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrMissingSession means phase 2 ran without a pending login. The
	// client must restart at phase 1.
	ErrMissingSession = errors.New("missing session information")

	// ErrMissingCode means the request carried no code digits at all.
	ErrMissingCode = errors.New("missing code data")

	// ErrInvalidCodeFormat means the digits were present but malformed.
	ErrInvalidCodeFormat = errors.New("invalid code format")

	// ErrCodeExpired means the submitted code's validity lapsed. A fresh
	// code has already been issued and sent when this is returned.
	ErrCodeExpired = errors.New("code expired, a new one has been sent")
)

// RateLimitError reports a throttled request and how long until the window
// resets. Whether RetryIn reaches the client is a presentation decision.
type RateLimitError struct {
	RetryIn time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryIn.Round(time.Second))
}

// IncorrectCodeError reports a failed code check. AttemptsLeft is nil when
// the service is configured not to disclose the remaining budget.
type IncorrectCodeError struct {
	AttemptsLeft *int
}

func (e *IncorrectCodeError) Error() string {
	if e.AttemptsLeft != nil {
		return fmt.Sprintf("incorrect code, %d attempts left", *e.AttemptsLeft)
	}
	return "incorrect code"
}
