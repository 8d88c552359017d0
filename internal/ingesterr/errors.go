// Package ingesterr defines the error kinds shared across every pipeline
// stage. Stages classify failures by meaning, not by Go error type, so the
// orchestrator and state store can make retry and transition decisions
// without importing stage-specific packages.
package ingesterr

import (
	"errors"
	"fmt"
)

// Kind is the category of a pipeline error, as recorded on a ContentRecord's
// error block.
type Kind int

const (
	// Permanent covers anything else: malformed document, unsupported
	// format, unrecoverable parse error. Terminal.
	Permanent Kind = iota

	// TransientBackend is a retriable I/O or rate-limit error from the
	// drive, object store, state store, or vector service. Eligible for
	// exponential backoff.
	TransientBackend

	// OCRTimeout is a hard wall-clock timeout during extraction. Handled
	// locally by falling back to the fast-extraction result, so it never
	// reaches the error block; an empty fallback result is recorded as
	// EmptyContent.
	OCRTimeout

	// EmptyContent means extraction produced no text. Terminal for the
	// record.
	EmptyContent

	// StaleProcessing is synthetic, produced by the stale sweep. Terminal
	// until retried.
	StaleProcessing
)

// String returns the canonical name recorded in ContentRecord.error_type.
func (k Kind) String() string {
	switch k {
	case TransientBackend:
		return "TransientBackend"
	case OCRTimeout:
		return "OCRTimeout"
	case EmptyContent:
		return "EmptyContent"
	case StaleProcessing:
		return "StaleProcessing"
	default:
		return "Permanent"
	}
}

// Retriable reports whether the local caller should retry with backoff
// rather than transition the record to a failed state.
func (k Kind) Retriable() bool {
	return k == TransientBackend
}

// Error wraps an underlying cause with a Kind so callers up the stack can
// branch on classification instead of string-matching messages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind around an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Transient wraps a backend error as TransientBackend.
func Transient(message string, cause error) *Error {
	return Wrap(TransientBackend, message, cause)
}

// PermanentErr wraps an unrecoverable error as Permanent.
func PermanentErr(message string, cause error) *Error {
	return Wrap(Permanent, message, cause)
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, defaulting
// to Permanent for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Permanent
}
