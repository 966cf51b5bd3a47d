package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/profilebus/internal/store"
)

// PipelineError represents a failure while applying an outcome to the store.
type PipelineError struct {
	// Code identifies the error category.
	Code PipelineErrorCode

	// Op is the store operation that failed ("create" or "delete").
	Op string

	// TxID identifies the affected transaction.
	TxID string

	// Err is the underlying cause.
	Err error
}

// PipelineErrorCode categorizes pipeline errors.
type PipelineErrorCode string

const (
	// ErrCodeStoreFailure indicates the store call itself failed.
	ErrCodeStoreFailure PipelineErrorCode = "STORE_FAILURE"

	// ErrCodeConflict indicates a different record already holds the id.
	ErrCodeConflict PipelineErrorCode = "RECORD_CONFLICT"

	// ErrCodeNotAccepted indicates the projector was handed a rejection.
	ErrCodeNotAccepted PipelineErrorCode = "VERDICT_NOT_ACCEPTED"
)

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s tx=%s: %v", e.Code, e.Op, e.TxID, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// newStoreError classifies a store error.
func newStoreError(op, txid string, err error) *PipelineError {
	code := ErrCodeStoreFailure
	if errors.Is(err, store.ErrConflict) {
		code = ErrCodeConflict
	}
	return &PipelineError{Code: code, Op: op, TxID: txid, Err: err}
}

// IsStoreError returns true if err came from a store call, including conflicts.
// Uses errors.As to handle wrapped errors.
func IsStoreError(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeStoreFailure || pe.Code == ErrCodeConflict
	}
	return false
}

// IsConflict returns true if err reports a conflicting create.
func IsConflict(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeConflict
	}
	return false
}
