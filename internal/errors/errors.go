package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeExit       ErrorType = "EXIT"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Exit aborts the current operation with a message for the user
func Exit(format string, args ...any) *Error {
	return &Error{
		Type:    ErrorTypeExit,
		Message: fmt.Sprintf(format, args...),
	}
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
	}
}

func Internal(message string) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}

// IsType reports whether err wraps an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func IsExit(err error) bool {
	return IsType(err, ErrorTypeExit)
}

func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}
