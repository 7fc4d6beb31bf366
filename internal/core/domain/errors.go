package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested point does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackendUnavailable indicates a point-store backend could not be
	// reached. Read-path callers fall back to the other backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSecondaryDisabled indicates the secondary backend is
	// administratively disabled. Hybrid operations treat it as "returns
	// empty"; targeting it directly is an error.
	ErrSecondaryDisabled = errors.New("secondary backend disabled")

	// ErrFilterUnsupported indicates a backend rejected a filter on an
	// unindexed field. Callers re-evaluate the filter in-process.
	ErrFilterUnsupported = errors.New("filter not supported by backend")

	// ErrEmbeddingUnavailable indicates the embedding capability failed.
	// Reranking degrades gracefully; writes report the failure.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// Error codes carried across the tool-call boundary.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodePointNotFound      = "POINT_NOT_FOUND"
	CodeDimensionMismatch  = "DIMENSION_MISMATCH"
	CodeBatchLimitExceeded = "BATCH_LIMIT_EXCEEDED"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeSynthesisFailed    = "SYNTHESIS_FAILED"
	CodeRerankFailed       = "RERANK_FAILED"
	CodeUnknown            = "UNKNOWN_ERROR"
)

// StoreError is the structured error every public operation returns instead
// of propagating raw low-level failures. It carries a machine code, a human
// message, structured details and remediation suggestions.
type StoreError struct {
	Code        string
	Message     string
	Details     map[string]any
	Suggestions []string

	err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.err
}

// NewValidationError reports bad input shape or a missing field.
func NewValidationError(msg string, details map[string]any) *StoreError {
	return &StoreError{
		Code:    CodeValidation,
		Message: msg,
		Details: details,
		err:     ErrInvalidInput,
	}
}

// NewPointNotFoundError reports an absent point id.
func NewPointNotFoundError(id int64) *StoreError {
	return &StoreError{
		Code:    CodePointNotFound,
		Message: fmt.Sprintf("point %d not found", id),
		Details: map[string]any{"point_id": FormatPointID(id)},
		err:     ErrNotFound,
	}
}

// NewDimensionMismatchError reports an invalid vector shape.
func NewDimensionMismatchError(want, got int) *StoreError {
	return &StoreError{
		Code:    CodeDimensionMismatch,
		Message: fmt.Sprintf("vector has %d dimensions, expected %d", got, want),
		Details: map[string]any{"expected": want, "got": got},
		err:     ErrInvalidInput,
	}
}

// NewBatchLimitError reports a request exceeding a hard cap that could not
// be clamped.
func NewBatchLimitError(limit, got int) *StoreError {
	return &StoreError{
		Code:    CodeBatchLimitExceeded,
		Message: fmt.Sprintf("batch of %d exceeds limit %d", got, limit),
		Details: map[string]any{"limit": limit, "got": got},
		err:     ErrInvalidInput,
	}
}

// NewBackendUnavailableError reports a backend/network failure.
func NewBackendUnavailableError(backend string, cause error) *StoreError {
	return &StoreError{
		Code:    CodeBackendUnavailable,
		Message: fmt.Sprintf("%s backend unavailable", backend),
		Details: map[string]any{"backend": backend},
		err:     fmt.Errorf("%w: %w", ErrBackendUnavailable, cause),
	}
}

// NewSynthesisError wraps an answer-synthesis failure.
func NewSynthesisError(cause error) *StoreError {
	return &StoreError{
		Code:    CodeSynthesisFailed,
		Message: "answer synthesis failed",
		err:     cause,
	}
}

// NewRerankError wraps a reranking failure.
func NewRerankError(cause error) *StoreError {
	return &StoreError{
		Code:    CodeRerankFailed,
		Message: "reranking failed",
		err:     cause,
	}
}

// AsStoreError coerces any error into a StoreError, wrapping unknown causes
// under CodeUnknown so nothing raw crosses the tool boundary.
func AsStoreError(err error) *StoreError {
	var se *StoreError
	if errors.As(err, &se) {
		return se
	}
	return &StoreError{
		Code:    CodeUnknown,
		Message: err.Error(),
		err:     err,
	}
}
