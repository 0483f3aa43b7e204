package engine

import (
	"errors"
	"fmt"
)

// EngineError represents a fault detected during store operation.
//
// Faults include:
//   - Re-entrant dispatch: Dispatch called from a reducer or synchronous
//     subscriber callback of the in-progress dispatch
//   - Reducer fault: a slice reducer returned an error or panicked; the
//     dispatch is aborted and no state is committed
//   - Selector fault: a selector compute function failed; the cached value
//     from before the fault is preserved
//   - Journal fault: the configured sink rejected the entry; the dispatch
//     is aborted so the log never lags the state
//
// EngineError includes structured fields for diagnostics.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Kind is the action kind of the affected dispatch, if any.
	Kind string

	// Slice identifies the slice reducer (reducer faults) or slice target.
	Slice string

	// Selector identifies the selector node (selector faults).
	Selector string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeReentrantDispatch indicates Dispatch was called from within
	// reducer or synchronous-subscriber execution. Never queued: a queued
	// interpretation would break the ordering guarantee.
	ErrCodeReentrantDispatch ErrorCode = "REENTRANT_DISPATCH"

	// ErrCodeReducerFault indicates a slice reducer failed. Fatal to the
	// triggering dispatch; the store state is unchanged.
	ErrCodeReducerFault ErrorCode = "REDUCER_FAULT"

	// ErrCodeSelectorFault indicates a selector compute function failed
	// during recomputation.
	ErrCodeSelectorFault ErrorCode = "SELECTOR_FAULT"

	// ErrCodeJournalFault indicates the journal sink rejected an entry.
	ErrCodeJournalFault ErrorCode = "JOURNAL_FAULT"

	// ErrCodeUnknownSlice indicates a read of a slice name that was never
	// registered.
	ErrCodeUnknownSlice ErrorCode = "UNKNOWN_SLICE"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	switch {
	case e.Slice != "" && e.Kind != "":
		return fmt.Sprintf("%s: %s (slice=%s, kind=%s)", e.Code, e.Message, e.Slice, e.Kind)
	case e.Selector != "":
		return fmt.Sprintf("%s: %s (selector=%s)", e.Code, e.Message, e.Selector)
	case e.Kind != "":
		return fmt.Sprintf("%s: %s (kind=%s)", e.Code, e.Message, e.Kind)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsReentrancyError returns true if the error is a re-entrant dispatch
// violation. Uses errors.As to handle wrapped errors.
func IsReentrancyError(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeReentrantDispatch
	}
	return false
}

// IsReducerFault returns true if the error is a reducer fault.
func IsReducerFault(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeReducerFault
	}
	return false
}

// IsSelectorFault returns true if the error is a selector fault.
func IsSelectorFault(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeSelectorFault
	}
	return false
}

// NewReentrancyError creates an EngineError for a re-entrant dispatch.
func NewReentrancyError(kind string) *EngineError {
	return &EngineError{
		Code:    ErrCodeReentrantDispatch,
		Message: "dispatch called from within an in-progress dispatch",
		Kind:    kind,
	}
}

// NewReducerFault creates an EngineError for a failed slice reducer.
func NewReducerFault(slice, kind string, err error) *EngineError {
	return &EngineError{
		Code:    ErrCodeReducerFault,
		Message: "slice reducer failed",
		Slice:   slice,
		Kind:    kind,
		Err:     err,
	}
}

// NewSelectorFault creates an EngineError for a failed selector compute.
func NewSelectorFault(selector string, err error) *EngineError {
	return &EngineError{
		Code:     ErrCodeSelectorFault,
		Message:  "selector recomputation failed",
		Selector: selector,
		Err:      err,
	}
}

// NewJournalFault creates an EngineError for a rejected journal append.
func NewJournalFault(kind string, err error) *EngineError {
	return &EngineError{
		Code:    ErrCodeJournalFault,
		Message: "journal sink rejected entry",
		Kind:    kind,
		Err:     err,
	}
}

// NewUnknownSliceError creates an EngineError for an unregistered slice.
func NewUnknownSliceError(slice string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownSlice,
		Message: "slice is not registered",
		Slice:   slice,
	}
}
