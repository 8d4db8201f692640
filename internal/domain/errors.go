package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an error independently of the transport that reports it.
type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeInvalid         ErrorCode = "INVALID"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodePersistence     ErrorCode = "PERSISTENCE"
	ErrCodeInternal        ErrorCode = "INTERNAL"
)

// Error is a classified domain error. Message is safe to show to clients for
// every code except PERSISTENCE and INTERNAL.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError attaches a classification to an existing error.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrAuthenticationFailed = NewError(ErrCodeUnauthorized, "Incorrect email or password")
	ErrAccountInactive      = NewError(ErrCodeUnauthorized, "Account is not active")
	ErrNotAuthenticated     = NewError(ErrCodeUnauthorized, "Not authenticated")
	ErrTooManyAttempts      = NewError(ErrCodeTooManyRequests, "Too many failed login attempts, try again later")
	ErrUserNotFound         = NewError(ErrCodeNotFound, "User not found")
	ErrPropertyNotFound     = NewError(ErrCodeNotFound, "Property not found")
	ErrEmailTaken           = NewError(ErrCodeConflict, "Email already registered")
	ErrForbidden            = NewError(ErrCodeForbidden, "Not enough permissions")
	ErrInvalidInput         = NewError(ErrCodeInvalid, "Invalid input")
	ErrRegistrationClosed   = NewError(ErrCodeForbidden, "Self registration is disabled")
)

// Invalid returns an INVALID error with a client-facing message.
func Invalid(format string, args ...any) *Error {
	return NewError(ErrCodeInvalid, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err carries a domain error with the given code.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code, true
	}
	return "", false
}
