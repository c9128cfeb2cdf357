// Package apperr holds the typed errors shared by adapters, services and handlers.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"socialsync/internal/model"
)

var (
	// ErrPlatformDisabled platform switched off by operators
	ErrPlatformDisabled = errors.New("platform disabled")
	// ErrPlatformNotConfigured no adapter registered for the platform
	ErrPlatformNotConfigured = errors.New("platform not configured")
	// ErrUnsupportedContent the platform cannot carry this content as given
	ErrUnsupportedContent = errors.New("content not supported by platform")
)

// Retryable is implemented by errors that carry a retry hint
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether the first retry-aware error in the chain allows a retry
func IsRetryable(err error) bool {
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// IsCallerFault reports whether err stems from the caller's grant or input
// rather than from the platform being unhealthy.
func IsCallerFault(err error) bool {
	var (
		auth       *AuthenticationError
		validation *ValidationError
		noConn     *NoConnectionError
	)
	switch {
	case errors.As(err, &auth), errors.As(err, &validation), errors.As(err, &noConn):
		return true
	case errors.Is(err, ErrUnsupportedContent), errors.Is(err, context.Canceled):
		return true
	case errors.Is(err, ErrPlatformDisabled), errors.Is(err, ErrPlatformNotConfigured):
		return true
	}
	return false
}

// AuthenticationError token rejected by the platform
type AuthenticationError struct {
	Platform model.Platform
	Cause    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Platform.Title(), e.Cause)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Retryable re-authentication is needed first
func (e *AuthenticationError) Retryable() bool { return false }

// PublishError a catalog create, update or delete failed on one platform
type PublishError struct {
	Platform model.Platform
	SKU      string
	Cause    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s catalog sync failed for sku %s: %v", e.Platform.Title(), e.SKU, e.Cause)
}

func (e *PublishError) Unwrap() error { return e.Cause }

// Retryable callers may retry with backoff, except for switched-off or unknown
// platforms and rejected credentials
func (e *PublishError) Retryable() bool {
	return retryableCause(e.Cause)
}

func retryableCause(cause error) bool {
	if errors.Is(cause, ErrPlatformDisabled) || errors.Is(cause, ErrPlatformNotConfigured) {
		return false
	}
	var auth *AuthenticationError
	return !errors.As(cause, &auth)
}

// ShareError remote post failed
type ShareError struct {
	Platform model.Platform
	Cause    error
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("Failed to share to %s: %v", e.Platform, e.Cause)
}

func (e *ShareError) Unwrap() error { return e.Cause }

// Retryable remote post failures are transient, unlike missing platforms and rejected tokens
func (e *ShareError) Retryable() bool {
	return retryableCause(e.Cause)
}

// NoConnectionError user holds no usable grant for the platform
type NoConnectionError struct {
	Platform model.Platform
}

func (e *NoConnectionError) Error() string {
	return fmt.Sprintf("No valid %s connection found", e.Platform)
}

// Retryable the user has to connect the platform first
func (e *NoConnectionError) Retryable() bool { return false }

// ValidationError malformed input
type ValidationError struct {
	Message string
	Cause   error
}

// NewValidationError creates a ValidationError without a cause
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Retryable the same input fails again
func (e *ValidationError) Retryable() bool { return false }

// ConcurrentSyncError another sync of the same (sku, platform) is in flight
type ConcurrentSyncError struct {
	SKU      string
	Platform model.Platform
}

func (e *ConcurrentSyncError) Error() string {
	return fmt.Sprintf("sync of sku %s to %s already in progress", e.SKU, e.Platform)
}

// Retryable back off and retry once the running sync finishes
func (e *ConcurrentSyncError) Retryable() bool { return true }

// AggregationError stats read failed
type AggregationError struct {
	Message string
	Cause   error
}

func (e *AggregationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AggregationError) Unwrap() error { return e.Cause }

// Retryable not retried automatically
func (e *AggregationError) Retryable() bool { return false }
