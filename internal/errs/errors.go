// Package errs defines the coded domain errors surfaced to callers.
//
// Every error a caller can act on carries a stable Code. Errors compare equal
// under errors.Is when their codes match, so wrapped errors and errors built
// with extra metadata still match the package sentinels:
//
//	if errors.Is(err, errs.ErrInvitationExpired) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable reason code.
type Code string

const (
	CodeInvalidIdentifier          Code = "INVALID_IDENTIFIER"
	CodeInvalidDecision            Code = "INVALID_DECISION"
	CodeInvitationNotFound         Code = "INVITATION_NOT_FOUND"
	CodeInvitationExpired          Code = "INVITATION_EXPIRED"
	CodeDuplicatePendingInvitation Code = "DUPLICATE_PENDING_INVITATION"
	CodeNotFound                   Code = "NOT_FOUND"
	CodeEnrollmentDrift            Code = "ENROLLMENT_DRIFT"
)

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidIdentifier          = New(CodeInvalidIdentifier, "invalid identifier")
	ErrInvalidDecision            = New(CodeInvalidDecision, "invalid decision")
	ErrInvitationNotFound         = New(CodeInvitationNotFound, "invitation not found")
	ErrInvitationExpired          = New(CodeInvitationExpired, "invitation expired")
	ErrDuplicatePendingInvitation = New(CodeDuplicatePendingInvitation, "a pending invitation already exists")
	ErrNotFound                   = New(CodeNotFound, "not found")
	ErrEnrollmentDrift            = New(CodeEnrollmentDrift, "enrollment and card are out of sync")
)

// Error is a domain error with a code and optional context.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates an error carrying key/value context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates an error that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDomain reports whether err carries a domain code, as opposed to a
// storage or programming failure.
func IsDomain(err error) bool {
	return CodeOf(err) != ""
}
