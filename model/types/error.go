package types

import (
	"errors"
	"fmt"
)

// Code is a stable, machine readable error kind returned to API callers.
type Code string

const (
	CodeDefinitionInvalid  Code = "definition_invalid"
	CodeDefinitionInactive Code = "definition_inactive"
	CodeEvaluationFailed   Code = "evaluation_failed"
	CodeConflict           Code = "conflict"
	CodeNotAuthorized      Code = "not_authorized"
	CodeInstanceNotActive  Code = "instance_not_active"
	CodeActionNotAllowed   Code = "action_not_allowed"
	CodeInvalidRequest     Code = "invalid_request"
	CodeNotFound           Code = "not_found"
)

// Sentinels usable with errors.Is; they match any *Error carrying the same code.
var (
	ErrDefinitionInvalid  = &Error{Code: CodeDefinitionInvalid}
	ErrDefinitionInactive = &Error{Code: CodeDefinitionInactive}
	ErrEvaluationFailed   = &Error{Code: CodeEvaluationFailed}
	ErrConflict           = &Error{Code: CodeConflict}
	ErrNotAuthorized      = &Error{Code: CodeNotAuthorized}
	ErrInstanceNotActive  = &Error{Code: CodeInstanceNotActive}
	ErrActionNotAllowed   = &Error{Code: CodeActionNotAllowed}
	ErrInvalidRequest     = &Error{Code: CodeInvalidRequest}
	ErrNotFound           = &Error{Code: CodeNotFound}
)

// Error is a structured engine error.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports code equality so that sentinels match detailed errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a structured error with a formatted message.
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a structured error around cause.
func WrapError(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain or "" when err is not structured.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
