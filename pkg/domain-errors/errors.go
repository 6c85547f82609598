// Package domainerrors defines the error taxonomy shared by services and transports.
//
// Services return *Error values carrying a Code; transports map the Code to a
// status and render the message. Stores never construct these directly, they
// return pkg/platform/sentinel errors that services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error.
type Code string

const (
	// Authorization and registry outcomes.
	CodeUnauthorized            Code = "unauthorized"
	CodeRoleMismatch            Code = "role_mismatch"
	CodeAlreadyRegistered       Code = "already_registered"
	CodeAlreadyRegisteredIssuer Code = "already_registered_issuer"
	CodeNotRegistered           Code = "not_registered"

	// Record and workflow outcomes.
	CodeInvalidPayload Code = "invalid_payload"
	CodeInvalidState   Code = "invalid_state"
	CodeNotFound       Code = "not_found"

	// Transport and infrastructure outcomes.
	CodeUnauthenticated Code = "unauthenticated"
	CodeBadRequest      Code = "bad_request"
	CodeTimeout         Code = "timeout"
	CodeRateLimited     Code = "rate_limited"
	CodeInternal        Code = "internal_error"
)

// Error is a coded domain error. Field names the offending input for
// CodeInvalidPayload.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Invalid reports a payload validation failure on a named field.
func Invalid(field, msg string) error {
	return &Error{Code: CodeInvalidPayload, Message: msg, Field: field}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any error in the chain carries code.
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

// Is reports whether the outermost domain error in the chain carries code.
func Is(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// CodeOf returns the outermost code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// FieldOf returns the field of the outermost invalid-payload error, if any.
func FieldOf(err error) string {
	if de, ok := As(err); ok {
		return de.Field
	}
	return ""
}
