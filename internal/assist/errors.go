package assist

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrValidation marks a malformed request.
	ErrValidation = errors.New("assist: invalid request")
	// ErrQuotaExceeded marks a free-tier caller at the limit.
	ErrQuotaExceeded = errors.New("assist: quota exceeded")
	// ErrUpstream marks a failed provider call.
	ErrUpstream = errors.New("assist: upstream failure")
	// ErrInternal marks a failure of our own storage.
	ErrInternal = errors.New("assist: internal failure")
)

// Error codes returned to clients.
const (
	CodeInvalidRequest = "invalid_request"
	CodeLimitExceeded  = "limit_exceeded"
	CodeUpstream       = "upstream_error"
	CodeInternal       = "internal_error"
)

// UpgradeURL is where quota-limited callers are sent.
const UpgradeURL = "/pricing"

// Error is a failure the HTTP layer can render directly.
type Error struct {
	Status     int
	Code       string
	Message    string
	UpgradeURL string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidRequest, Message: message, Err: ErrValidation}
}

func quotaError(message string) *Error {
	return &Error{
		Status:     http.StatusTooManyRequests,
		Code:       CodeLimitExceeded,
		Message:    message,
		UpgradeURL: UpgradeURL,
		Err:        ErrQuotaExceeded,
	}
}

func upstreamError(message string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeUpstream, Message: message, Err: fmt.Errorf("%w: %w", ErrUpstream, cause)}
}

func internalError(message string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: message, Err: fmt.Errorf("%w: %w", ErrInternal, cause)}
}
