// Package apperr defines the failure taxonomy shared by the inference pipeline and the
// index synchronizer. Failures are inspected by their Kind rather than by Go type.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// InvalidInput is a caller error. It is never retried.
	InvalidInput Kind = iota + 1
	// GestureStageFailure means the gesture recognition service failed.
	GestureStageFailure
	// CorrectionStageFailure means the accent correction service failed.
	CorrectionStageFailure
	// IndexUnavailable means the search index could not be reached.
	IndexUnavailable
	// SyncExhausted means a sync task used up all of its attempts.
	SyncExhausted
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case GestureStageFailure:
		return "GestureStageFailure"
	case CorrectionStageFailure:
		return "CorrectionStageFailure"
	case IndexUnavailable:
		return "IndexUnavailable"
	case SyncExhausted:
		return "SyncExhausted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified failure with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New creates an Error.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
