// Package errors provides unified error handling for the perception core.
// Error codes are the kinds named in the core's error handling design, not
// Go type names, so callers can safely switch on Code across package
// boundaries instead of type-asserting on concrete error structs.
package errors

import (
	"fmt"
)

// Code enumerates the error kinds the core can surface.
type Code string

const (
	Unknown               Code = "UNKNOWN"
	Internal              Code = "INTERNAL"
	InvalidArgument       Code = "INVALID_ARGUMENT"
	Unavailable           Code = "UNAVAILABLE"
	Timeout               Code = "TIMEOUT"
	Cancelled             Code = "CANCELLED"
	PermissionDenied      Code = "PERMISSION_DENIED"
	CaptureTransient      Code = "CAPTURE_TRANSIENT"
	OCRInitFatal          Code = "OCR_INIT_FATAL"
	OCRRecognizeTransient Code = "OCR_RECOGNIZE_TRANSIENT"
	AudioProbeIncomplete  Code = "AUDIO_PROBE_INCOMPLETE"
	SubscriberSlow        Code = "SUBSCRIBER_SLOW"
	Shutdown              Code = "SHUTDOWN"
)

// AppError is the base error type with a structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError and returns it for chaining.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, CaptureTransient, OCRRecognizeTransient:
		return true
	default:
		return false
	}
}
