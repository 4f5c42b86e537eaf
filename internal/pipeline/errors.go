package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline error for the retry/propagation policy in §7.
type Kind string

const (
	// KindInput marks an invalid job: missing source, malformed flags.
	KindInput Kind = "input"
	// KindPreflight marks a required external tool being unavailable.
	KindPreflight Kind = "preflight"
	// KindProcess marks a child process exiting non-zero or dying unexpectedly.
	KindProcess Kind = "process"
	// KindCancelled marks a cooperative cancellation; never counts against retry budget.
	KindCancelled Kind = "cancelled"
	// KindStore marks a persistence failure.
	KindStore Kind = "store"
	// KindRecovery marks a crash-recovery reconciliation failure.
	KindRecovery Kind = "recovery"
)

// Error is the taxonomy type every component in this module returns instead
// of a bare error, so the scheduler's retry/dead-letter decision (§4.5.2) and
// the propagation policy (§7) can switch on Kind without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewInputError constructs a KindInput error.
func NewInputError(message string, cause error) *Error {
	return &Error{Kind: KindInput, Message: message, Cause: cause}
}

// NewPreflightError constructs a KindPreflight error.
func NewPreflightError(message string, cause error) *Error {
	return &Error{Kind: KindPreflight, Message: message, Cause: cause}
}

// NewProcessError constructs a KindProcess error.
func NewProcessError(message string, cause error) *Error {
	return &Error{Kind: KindProcess, Message: message, Cause: cause}
}

// NewCancelledError constructs a KindCancelled error.
func NewCancelledError(message string, cause error) *Error {
	return &Error{Kind: KindCancelled, Message: message, Cause: cause}
}

// NewStoreError constructs a KindStore error.
func NewStoreError(message string, cause error) *Error {
	return &Error{Kind: KindStore, Message: message, Cause: cause}
}

// NewRecoveryError constructs a KindRecovery error.
func NewRecoveryError(message string, cause error) *Error {
	return &Error{Kind: KindRecovery, Message: message, Cause: cause}
}

// IsCancelled reports whether err is (or wraps) a KindCancelled Error.
func IsCancelled(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindCancelled
	}
	return false
}
