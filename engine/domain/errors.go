package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrEmptyQuery     = errors.New("empty query text")
	ErrBadLimit       = errors.New("limit must be positive")
	ErrUnknownMode    = errors.New("unknown query mode")
	ErrUnknownRole    = errors.New("unknown role")
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrUnavailable marks a connection-level failure of an external service.
	// During a sync run it is fatal for the run, unlike per-record errors.
	ErrUnavailable = errors.New("service unavailable")
)

// ValidationError wraps a sentinel with the offending field and value.
// Caller's fault; never retried and never reaches an external service.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// EmbeddingError is a failure of the embedding provider for a given text.
// During sync it is accounted per record; at query time it surfaces as an
// UpstreamError.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding: " + e.Err.Error() }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexError is a failure of the vector index for a given operation.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string { return fmt.Sprintf("index: %s: %s", e.Op, e.Err) }
func (e *IndexError) Unwrap() error { return e.Err }

// UpstreamError is a query-time dependency failure. Callers must be able to
// distinguish it from an empty result set.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream %s: %s", e.Service, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// ErrorReason maps an error to its class name, used as the itemized reason in
// a SyncRun.
func ErrorReason(err error) string {
	var embErr *EmbeddingError
	var idxErr *IndexError
	var upErr *UpstreamError
	switch {
	case errors.As(err, &embErr):
		return "EmbeddingError"
	case errors.As(err, &idxErr):
		return "IndexError"
	case errors.As(err, &upErr):
		return "UpstreamError"
	default:
		return "Error"
	}
}
