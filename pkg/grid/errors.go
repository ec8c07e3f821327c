package grid

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a grid error for programmatic
// handling.
type ErrorClass string

const (
	// ErrorClassConfiguration indicates a call that violated the grid's
	// contract: a reserved-name collision, a duplicate custom argument,
	// an invalid status symbol, or an insufficient worker count.
	ErrorClassConfiguration ErrorClass = "configuration"

	// ErrorClassDataMismatch indicates a restored snapshot whose axes or
	// return values disagree with the declared configuration.
	ErrorClassDataMismatch ErrorClass = "data_mismatch"

	// ErrorClassFormat indicates an unsupported persistence format.
	ErrorClassFormat ErrorClass = "format"

	// ErrorClassExists indicates a save target that already exists and
	// overwrite was not requested.
	ErrorClassExists ErrorClass = "already_exists"
)

// Error represents a classified grid error with context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Name is the axis, column, or argument name that caused the error,
	// if applicable.
	Name string `json:"name,omitempty"`

	// Path is the persistence path involved, if applicable.
	Path string `json:"path,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Name != "" {
		msg += fmt.Sprintf(" (name=%s)", e.Name)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(message string) *Error {
	return &Error{
		Class:   ErrorClassConfiguration,
		Message: message,
	}
}

// NewDataMismatchError creates a new data-mismatch error.
func NewDataMismatchError(message string) *Error {
	return &Error{
		Class:   ErrorClassDataMismatch,
		Message: message,
	}
}

// NewFormatError creates a new unsupported-format error.
func NewFormatError(message string) *Error {
	return &Error{
		Class:   ErrorClassFormat,
		Message: message,
	}
}

// NewExistsError creates a new already-exists error.
func NewExistsError(message string) *Error {
	return &Error{
		Class:   ErrorClassExists,
		Message: message,
	}
}

// WithName adds the offending name to an error.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// WithPath adds the persistence path to an error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithErr adds an underlying error.
func (e *Error) WithErr(err error) *Error {
	e.Err = err
	return e
}

// IsConfiguration returns true if the error is classified as a
// configuration error.
func IsConfiguration(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassConfiguration
	}
	return false
}

// IsDataMismatch returns true if the error is classified as a data mismatch.
func IsDataMismatch(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassDataMismatch
	}
	return false
}

// IsUnsupportedFormat returns true if the error is classified as an
// unsupported persistence format.
func IsUnsupportedFormat(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassFormat
	}
	return false
}

// IsAlreadyExists returns true if the error indicates an existing save
// target.
func IsAlreadyExists(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassExists
	}
	return false
}
