package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Configuration errors: fatal at construction time, never deferred to a request.
const (
	ErrConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrUnknownRetriever ErrorCode = "UNKNOWN_RETRIEVER"
	ErrUnknownSplitter  ErrorCode = "UNKNOWN_SPLITTER"
	ErrUnknownPrompt    ErrorCode = "UNKNOWN_PROMPT"
	ErrUnknownChain     ErrorCode = "UNKNOWN_CHAIN"
)

// Request-time errors.
const (
	ErrEmptyQuery        ErrorCode = "EMPTY_QUERY"
	ErrUnknownCollection ErrorCode = "UNKNOWN_COLLECTION"
	ErrRetrieverFailed   ErrorCode = "RETRIEVER_FAILED"
	ErrStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrSynthesisFailed   ErrorCode = "SYNTHESIS_FAILED"
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrCancelled         ErrorCode = "CANCELLED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Retriever string    `json:"retriever,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps a cause with a code and message.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithRetriever tags the error with the originating retriever name.
func (e *Error) WithRetriever(name string) *Error {
	e.Retriever = name
	return e
}

// AsError extracts a *Error from err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	if e := AsError(err); e != nil {
		return e.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e := AsError(err); e != nil {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e := AsError(err); e != nil {
		return e.Code
	}
	return ""
}

// IsConfigError reports whether the code belongs to the construction-time class.
func IsConfigError(err error) bool {
	switch GetErrorCode(err) {
	case ErrConfigInvalid, ErrUnknownRetriever, ErrUnknownSplitter, ErrUnknownPrompt, ErrUnknownChain:
		return true
	}
	return false
}
