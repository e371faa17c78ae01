// Package apperr defines the error taxonomy shared by the chat core.
// Callers match errors with errors.Is against the exported sentinels,
// or errors.As against *Error to read the code and retry hint.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies an error category.
type Code string

const (
	CodeInvalidContent     Code = "invalid_content"
	CodeEmbeddingProvider  Code = "embedding_provider_error"
	CodeModelMismatch      Code = "embedding_model_mismatch"
	CodeResourceExhausted  Code = "resource_exhausted"
	CodeNotFound           Code = "not_found"
	CodeExpired            Code = "expired"
	CodeInvalidState       Code = "invalid_state"
	CodeRateLimited        Code = "rate_limited"
	CodeGenerationProvider Code = "generation_provider_error"
	CodeRejectedInput      Code = "rejected_input"
)

// Error is a taxonomy-coded error. Message is safe to show to end users;
// Err holds the underlying cause for operators.
type Error struct {
	Code       Code
	Message    string
	RetryAfter time.Duration // set only for CodeRateLimited
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports code equality so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidContent     = &Error{Code: CodeInvalidContent, Message: "content is empty or malformed"}
	ErrEmbeddingProvider  = &Error{Code: CodeEmbeddingProvider, Message: "embedding provider failed"}
	ErrModelMismatch      = &Error{Code: CodeModelMismatch, Message: "index was built with a different embedding model"}
	ErrResourceExhausted  = &Error{Code: CodeResourceExhausted, Message: "too many concurrent sessions"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "session not found"}
	ErrExpired            = &Error{Code: CodeExpired, Message: "session expired, please start a new session"}
	ErrInvalidState       = &Error{Code: CodeInvalidState, Message: "session is no longer active, please start a new session"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "too many messages, please slow down"}
	ErrGenerationProvider = &Error{Code: CodeGenerationProvider, Message: "language model provider failed"}
	ErrRejectedInput      = &Error{Code: CodeRejectedInput, Message: "message was rejected"}
)

// New returns a coded error wrapping cause.
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// RateLimited returns a rate-limit error carrying the retry hint.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "too many messages, please slow down",
		RetryAfter: retryAfter,
	}
}

// CodeOf extracts the taxonomy code from err, or "" if err is not coded.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RetryAfterOf extracts the retry hint from a rate-limit error, or 0.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
