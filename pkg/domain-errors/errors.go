// Package errors provides coded domain errors for the audit ledger.
//
// Services return these so transport layers can map failures to wire codes
// without inspecting error strings. Stores return sentinel errors
// (pkg/platform/sentinel) and services translate them here.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Codes are stable wire values.
type Code string

const (
	// CodeInvalidAction means the caller supplied an action outside the
	// recognized vocabulary and did not use the "other" escape value.
	CodeInvalidAction Code = "invalid_action"

	// CodeInvalidInput means a required field was missing or malformed.
	CodeInvalidInput Code = "invalid_input"

	CodeBadRequest  Code = "bad_request"
	CodeNotFound    Code = "not_found"
	CodeTimeout     Code = "timeout"
	CodeUnavailable Code = "unavailable"

	// CodeInternal covers storage and other infrastructure failures. Its
	// description is never surfaced verbatim to callers.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	code Code
	msg  string
	err  error
}

// New creates a coded error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Code returns the error's code.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable description without the code prefix.
func (e *Error) Message() string { return e.msg }

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors so unexpected failures never leak detail.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}
