package app

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrPersistence      = errors.New("persistence failed")
	ErrPartialBatch     = errors.New("partial batch failure")
	ErrDragInProgress   = errors.New("drag already in progress")
	ErrReorderActive    = errors.New("reorder already active")
	ErrNotReordering    = errors.New("not reordering")
	ErrCommitInFlight   = errors.New("commit in flight")
	ErrBatchUnsupported = errors.New("batch order unsupported")
)

// ValidationError reports an invalid drop target, index or input.
type ValidationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Op + ": " + ErrValidation.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// PersistenceError reports a rejected store mutation.
type PersistenceError struct {
	Op     string
	ItemID string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ItemID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// ItemError is one failed write inside a batch.
type ItemError struct {
	ItemID       string `json:"id"`
	DisplayOrder int    `json:"display_order"`
	Err          error  `json:"-"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s -> %d: %v", e.ItemID, e.DisplayOrder, e.Err)
}

// PartialBatchFailure reports a batch where some writes landed and some did not.
// The persisted order then matches neither the old nor the intended order.
type PartialBatchFailure struct {
	Op      string
	Applied []OrderUpdate
	Failed  []ItemError
}

func (e *PartialBatchFailure) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, failed := range e.Failed {
		parts = append(parts, failed.Error())
	}
	return fmt.Sprintf("%s: %d of %d writes failed: %s",
		e.Op, len(e.Failed), len(e.Failed)+len(e.Applied), strings.Join(parts, "; "))
}

func (e *PartialBatchFailure) Unwrap() []error {
	out := []error{ErrPartialBatch}
	for _, failed := range e.Failed {
		if failed.Err != nil {
			out = append(out, failed.Err)
		}
	}
	return out
}

func validationError(op string, err error) error {
	if err == nil {
		return nil
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	return &ValidationError{Op: op, Err: err}
}
