package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// Fatal: the run cannot continue.
	ErrorTypeBrowser     ErrorType = "browser"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeEnumeration ErrorType = "enumeration"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeConfig      ErrorType = "config"

	// Recoverable: only the current resource is affected.
	ErrorTypeNavigation      ErrorType = "navigation"
	ErrorTypeControlNotFound ErrorType = "control_not_found"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a classified failure carrying the resource URL it concerns, if any
type Error struct {
	Type    ErrorType
	Message string
	URL     string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

// ForURL creates a classified error bound to a resource URL
func ForURL(t ErrorType, url, message string, cause error) *Error {
	return &Error{Type: t, Message: message, URL: url, Err: cause}
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsFatal reports whether err must abort the whole run. Unclassified errors
// are treated as fatal so they are never silently swallowed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch TypeOf(err) {
	case ErrorTypeNavigation, ErrorTypeControlNotFound:
		return false
	default:
		return true
	}
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	return TypeOf(err) == ErrorTypeNavigation
}

// Exit codes returned by the command line tool
const (
	ExitOK          = 0
	ExitGeneric     = 1
	ExitConfig      = 2
	ExitBrowser     = 3
	ExitAuth        = 4
	ExitNoResources = 5
	ExitStorage     = 6
)

// ExitCode maps an error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch TypeOf(err) {
	case ErrorTypeConfig:
		return ExitConfig
	case ErrorTypeBrowser:
		return ExitBrowser
	case ErrorTypeAuth:
		return ExitAuth
	case ErrorTypeEnumeration, ErrorTypeValidation:
		return ExitNoResources
	case ErrorTypeStorage:
		return ExitStorage
	default:
		return ExitGeneric
	}
}
