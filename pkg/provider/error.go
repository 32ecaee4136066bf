package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorClass is the policy-relevant classification of a provider failure.
// The router branches on the class, never on raw error text.
type ErrorClass string

const (
	ClassAuth            ErrorClass = "auth"
	ClassRateLimited     ErrorClass = "rate_limited"
	ClassContextTooLarge ErrorClass = "context_too_large"
	ClassUnavailable     ErrorClass = "unavailable"
)

// Error wraps a backend failure with its classification and HTTP status.
type Error struct {
	Provider string
	Class    ErrorClass
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Class, e.Err)
	}
	return fmt.Sprintf("%s: %s (status=%d)", e.Provider, e.Class, e.Status)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a classified provider error from an HTTP status and cause.
func NewError(providerID string, status int, err error) *Error {
	return &Error{
		Provider: providerID,
		Class:    classifyStatus(status, err),
		Status:   status,
		Err:      err,
	}
}

// ClassOf extracts the error class, defaulting to unavailable for
// unclassified transport failures.
func ClassOf(err error) ErrorClass {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ClassUnavailable
}

// IsTimeout reports whether the failure was a deadline expiry rather than a
// backend-reported error.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyStatus(status int, err error) ErrorClass {
	switch {
	case status == 401 || status == 403:
		return ClassAuth
	case status == 429:
		return ClassRateLimited
	case status == 413:
		return ClassContextTooLarge
	case status == 400 || status == 422:
		if mentionsContextSize(err) {
			return ClassContextTooLarge
		}
		return ClassUnavailable
	default:
		return ClassUnavailable
	}
}

// mentionsContextSize sniffs the backend message for token-limit phrasing.
// Providers report an oversized prompt as a generic 400, so the status alone
// is not enough to trigger a compression retry.
func mentionsContextSize(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"context length",
		"context window",
		"maximum context",
		"token limit",
		"too many tokens",
		"prompt is too long",
		"input too long",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
