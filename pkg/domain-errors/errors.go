// Package domainerrors defines the error taxonomy shared by services and transport.
//
// Services return *Error values carrying a Code. Transport maps the code to a
// status; stores never construct these directly and instead return
// pkg/platform/sentinel errors that services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnavailable        Code = "unavailable"
	CodeTimeout            Code = "timeout"
	CodeComplianceBlock    Code = "compliance_block"
	CodeInvalidState       Code = "invalid_state"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeRateLimited        Code = "rate_limited"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded domain error. Message is safe to show to callers; Err keeps
// the underlying cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
	// Detail carries an optional payload for the caller, e.g. the existing
	// resource on a conflict.
	Detail any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetail attaches a caller-visible payload and returns the same error.
func (e *Error) WithDetail(detail any) *Error {
	e.Detail = detail
	return e
}

// As extracts the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// IsTransient reports whether a retry may succeed.
func IsTransient(err error) bool {
	return HasCode(err, CodeUnavailable) || HasCode(err, CodeTimeout)
}
