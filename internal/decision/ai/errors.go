package ai

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies why a second opinion could not be obtained.
type ErrorCategory string

const (
	ErrorTimeout         ErrorCategory = "timeout"
	ErrorRateLimited     ErrorCategory = "rate_limited"
	ErrorInvalidResponse ErrorCategory = "invalid_response"
	// ErrorUnavailable covers unreachable providers, server-side failures and
	// calls rejected by the open breaker.
	ErrorUnavailable   ErrorCategory = "unavailable"
	ErrorConfiguration ErrorCategory = "configuration"
)

// transient categories are retried and count against the breaker.
var transient = map[ErrorCategory]bool{
	ErrorTimeout:     true,
	ErrorRateLimited: true,
	ErrorUnavailable: true,
}

var (
	ErrUnknownProvider = errors.New("unknown ai provider")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// ProviderError is the single error type returned across the AI boundary.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  transient[category],
	}
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("ai %s (%s): %s", e.ProviderID, e.Category, e.Message)
	if e.Underlying == nil {
		return msg
	}
	return msg + ": " + e.Underlying.Error()
}

func (e *ProviderError) Unwrap() error { return e.Underlying }

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	pe, ok := asProviderError(err)
	return ok && pe.Retryable
}

// GetCategory returns the category of err, treating unclassified errors as
// unavailability.
func GetCategory(err error) ErrorCategory {
	if pe, ok := asProviderError(err); ok {
		return pe.Category
	}
	return ErrorUnavailable
}

func asProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}
