package errs

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are stable and safe to match on.
type Code string

const (
	CodeUnknown                  Code = "UNKNOWN"
	CodeInvalidInput             Code = "INVALID_INPUT"
	CodeDriverUnavailable        Code = "DRIVER_UNAVAILABLE"
	CodeUnknownDevice            Code = "UNKNOWN_DEVICE"
	CodeUnrecognizedHardware     Code = "UNRECOGNIZED_HARDWARE"
	CodeUnsupportedConfiguration Code = "UNSUPPORTED_CONFIGURATION"
	CodeCatalogInvalid           Code = "CATALOG_INVALID"
)

// Error is the coded error shared by the device and artifact domains.
type Error struct {
	Code    Code
	Domain  string
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		if field, ok := e.Details["field"].(string); ok {
			msg = fmt.Sprintf("%s (field %s)", msg, field)
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so sentinels compare by class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of e with key set. Sentinels are never mutated.
func (e *Error) WithDetails(key string, value any) *Error {
	c := e.clone()
	c.Details[key] = value
	return c
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := e.clone()
	c.Cause = cause
	return c
}

// Field returns the offending configuration field, if one was recorded.
func (e *Error) Field() string {
	f, _ := e.Details["field"].(string)
	return f
}

func (e *Error) clone() *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	return &Error{
		Code:    e.Code,
		Domain:  e.Domain,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: map[string]any{}}
}

func NewDomain(domain string, code Code, message string) *Error {
	return &Error{Code: code, Domain: domain, Message: message, Details: map[string]any{}}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err, Details: map[string]any{}}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}

// IsFatal reports whether err should abort a resolution. Unrecognized
// hardware only means no target triple could be picked automatically.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) != CodeUnrecognizedHardware
}
