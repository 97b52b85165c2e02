package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOperationFailed = errors.New("operation failed")

	// Post lifecycle errors
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("operation not allowed in current post status")
	ErrConflict     = errors.New("post was modified concurrently")
	ErrGeneration   = errors.New("content generation failed")
	ErrPublish      = errors.New("publish failed")
	ErrRateLimited  = errors.New("too many requests")
)

// GenerationError is returned by content generators. It matches ErrGeneration.
type GenerationError struct {
	Provider string
	Reason   string
	// Retryable marks transient upstream failures (timeouts, 429, 5xx).
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation via %s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("generation via %s: %s", e.Provider, e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// PublishError is the failure of a single platform publish attempt. It matches ErrPublish.
type PublishError struct {
	Platform   string
	Reason     string
	StatusCode int
	// Retryable marks transient failures (network, 429, 5xx).
	Retryable bool
	Err       error
}

func (e *PublishError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("publish to %s (status %d): %s", e.Platform, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("publish to %s: %s", e.Platform, e.Reason)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool { return target == ErrPublish }

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
