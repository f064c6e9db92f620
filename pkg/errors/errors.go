// Package errors provides structured error handling for the realtime SDK.
// Errors carry a category, a severity, and optional structured data so that
// callers can classify failures programmatically instead of matching strings.
package errors

import (
	"fmt"
	"time"
)

// Category classifies an error for handling and reporting.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryLifecycle Category = "lifecycle"
	CategoryConfig    Category = "config"
	CategoryInternal  Category = "internal"
	CategoryTimeout   Category = "timeout"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Error codes local to this library.
const (
	CodeConnectionFailed = iota + 1000
	CodeConnectionLost
	CodeRetriesExhausted
	CodeEmitFailed
	CodeTransportClosed
	CodeNotInitialized
	CodeInvalidConfig
)

// Error is the interface implemented by all realtime SDK errors.
type Error interface {
	error

	// Code returns the library-local error code.
	Code() int

	// Message returns a human-readable error message.
	Message() string

	// Category returns the error category for classification.
	Category() Category

	// Severity returns the error severity level.
	Severity() Severity

	// Data returns structured error data for programmatic handling.
	Data() interface{}

	// WithData returns a copy of the error carrying structured data.
	WithData(data interface{}) Error

	// Unwrap returns the underlying cause for error chain traversal.
	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	category Category
	severity Severity
	data     interface{}
	cause    error
	at       time.Time
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Data() interface{}  { return e.data }
func (e *baseError) Unwrap() error      { return e.cause }

func (e *baseError) WithData(data interface{}) Error {
	clone := *e
	clone.data = data
	return &clone
}

// New creates a structured error with no underlying cause.
func New(code int, message string, category Category, severity Severity) Error {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		at:       time.Now(),
	}
}

// Wrap creates a structured error around an underlying cause.
// A nil cause is allowed and behaves like New.
func Wrap(cause error, code int, message string, category Category, severity Severity) Error {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    cause,
		at:       time.Now(),
	}
}

// CodeOf returns the library-local code of err, or 0 when err is not a
// structured realtime error.
func CodeOf(err error) int {
	if e, ok := err.(Error); ok {
		return e.Code()
	}
	return 0
}
