// Package domainerrors defines the coded error type shared across services.
//
// Services translate infrastructure sentinels (pkg/platform/sentinel) and
// provider failures into coded errors exactly once; the HTTP layer maps codes
// to status codes exactly once (pkg/platform/httputil). Raw upstream errors
// never cross the API boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for boundary translation.
type Code string

const (
	// CodeBadRequest covers malformed or undecodable requests.
	CodeBadRequest Code = "bad_request"
	// CodeValidation covers well-formed requests with invalid field values.
	CodeValidation Code = "validation_error"
	// CodeNotFound means the referenced record does not exist.
	CodeNotFound Code = "not_found"
	// CodeForbidden means the caller's credentials lack access to storage.
	CodeForbidden Code = "forbidden"
	// CodeLocked means a detailed diagnosis was read before payment unlocked it.
	// Distinct from CodeNotFound so clients can offer the checkout flow.
	CodeLocked Code = "locked"
	// CodeUnavailable is a transient storage outage; callers may retry.
	CodeUnavailable Code = "store_unavailable"
	// CodeProvider is a completion-provider failure (network, quota, model).
	CodeProvider Code = "provider_error"
	// CodePayment covers payment failures: invalid webhook signature,
	// provider API errors, missing token in a payload.
	CodePayment Code = "payment_error"
	// CodeRender is a document generation failure.
	CodeRender Code = "render_error"
	// CodeInternal is the catch-all; its detail is never sent to clients.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a safe message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and safe message to an underlying cause. The cause is
// preserved for logs; only code and message are exposed to clients.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		de = nil
	}
	return false
}

// Is is shorthand for HasCode, matching call sites that read like errors.Is.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error was never classified.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost safe message, or an empty string.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
