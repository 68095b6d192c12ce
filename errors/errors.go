package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryMetadata   Category = "metadata"
	CategoryTransform  Category = "transform"
	CategoryStorage    Category = "storage"
	CategoryNotFound   Category = "notfound"
	CategoryConfig     Category = "config"
	CategoryInput      Category = "input"
	CategoryTransient  Category = "transient"
)

// IntakeError is the structured error type used throughout the module.
type IntakeError struct {
	Category  Category
	Op        string // operation name, e.g. "transform.resize"
	Err       error
	Retryable bool
}

func (e *IntakeError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *IntakeError) Unwrap() error { return e.Err }

// New creates a non-retryable IntakeError.
func New(category Category, op string, err error) *IntakeError {
	return &IntakeError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable IntakeError.
func Transient(op string, err error) *IntakeError {
	return &IntakeError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var ie *IntakeError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var ie *IntakeError
	if errors.As(err, &ie) {
		return ie.Category == cat
	}
	return false
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrInvalidDimensions  = errors.New("invalid dimensions")
	ErrEmptyInput         = errors.New("empty input")
	ErrNotFound           = errors.New("temp entry not found")
	ErrEntryExpired       = errors.New("temp entry expired")
	ErrMalformedDataURL   = errors.New("malformed data url")
	ErrWorkerPoolFull     = errors.New("worker pool queue full")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
