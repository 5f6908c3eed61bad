package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")
)

// DocumentIndexingError signals an illegal lifecycle transition: pausing a
// finished document, recovering one that is not paused, or updating a
// document that is actively being indexed.
type DocumentIndexingError struct {
	Message string
}

func (e *DocumentIndexingError) Error() string {
	return e.Message
}

func NewDocumentIndexingError(format string, args ...any) *DocumentIndexingError {
	return &DocumentIndexingError{Message: fmt.Sprintf(format, args...)}
}

// IsDocumentIndexingError reports whether err is a lifecycle-transition error.
func IsDocumentIndexingError(err error) bool {
	var die *DocumentIndexingError
	return errors.As(err, &die)
}

// NoPermissionError signals the acting account lacks the role or tenant
// membership required for the operation.
type NoPermissionError struct {
	Message string
}

func (e *NoPermissionError) Error() string {
	return e.Message
}

func NewNoPermissionError(msg string) *NoPermissionError {
	return &NoPermissionError{Message: msg}
}

func IsNoPermissionError(err error) bool {
	var npe *NoPermissionError
	return errors.As(err, &npe)
}

// DocumentIsPausedError is the cooperative interruption signal raised by the
// indexing runner when it observes a pause flag mid-run. It is not a failure
// and must never be persisted as document error state.
type DocumentIsPausedError struct {
	DocumentID string
}

func (e *DocumentIsPausedError) Error() string {
	return fmt.Sprintf("document %s is paused", e.DocumentID)
}

func IsDocumentIsPausedError(err error) bool {
	var dpe *DocumentIsPausedError
	return errors.As(err, &dpe)
}
