package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies LLM failures for retry and fallback decisions.
type ErrorType string

const (
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeRateLimited       ErrorType = "rate_limited"
	ErrorTypeQuotaExceeded     ErrorType = "quota_exceeded"
	ErrorTypeAuth              ErrorType = "auth"
	ErrorTypeMalformedResponse ErrorType = "malformed_response"
	ErrorTypeUnavailable       ErrorType = "unavailable"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
// This allows the retry package to check retryability without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError maps provider errors onto the structured Error type.
// Timeouts, rate limits, and 5xx responses are retryable; auth and quota
// failures are not.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeTimeout, "request deadline exceeded", true, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeTimeout, "request cancelled", false, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(ErrorTypeTimeout, "network timeout", true, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	var anthErr *anthropic.APIError
	if errors.As(err, &anthErr) {
		switch {
		case anthErr.IsRateLimitErr():
			return &Error{Type: ErrorTypeRateLimited, Message: "rate limited", Retryable: true, Cause: err}
		case anthErr.IsAuthenticationErr(), anthErr.IsPermissionErr():
			return &Error{Type: ErrorTypeAuth, Message: "authentication failed", Retryable: false, Cause: err}
		case anthErr.IsApiErr(), anthErr.IsOverloadedErr():
			return &Error{Type: ErrorTypeUnavailable, Message: "provider unavailable", Retryable: true, Cause: err}
		default:
			return &Error{Type: ErrorTypeUnknown, Message: anthErr.Message, Retryable: false, Cause: err}
		}
	}

	return NewError(ErrorTypeUnknown, "unclassified provider error", false, err)
}

func classifyStatus(status int, cause error) *Error {
	switch {
	case status == 401 || status == 403:
		return &Error{Type: ErrorTypeAuth, Message: "authentication failed", Retryable: false, Cause: cause, StatusCode: status}
	case status == 402:
		return &Error{Type: ErrorTypeQuotaExceeded, Message: "quota exceeded", Retryable: false, Cause: cause, StatusCode: status}
	case status == 429:
		return &Error{Type: ErrorTypeRateLimited, Message: "rate limited", Retryable: true, Cause: cause, StatusCode: status}
	case status >= 500:
		return &Error{Type: ErrorTypeUnavailable, Message: "provider unavailable", Retryable: true, Cause: cause, StatusCode: status}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: "request failed", Retryable: false, Cause: cause, StatusCode: status}
	}
}
