package rtdb

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/errorutils"
)

// Error carries a Realtime Database failure classified for repository callers.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.err }

// IsNotFound reports a missing node or database.
func (e *Error) IsNotFound() bool { return e.notFound }

// IsConflict reports a failed conditional write.
func (e *Error) IsConflict() bool { return e.conflict }

// IsUnavailable reports a transient backend failure.
func (e *Error) IsUnavailable() bool { return e.unavailable }

// WrapError classifies err using the Firebase error helpers. Context errors pass through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{
		op:          op,
		err:         err,
		notFound:    errorutils.IsNotFound(err),
		conflict:    errorutils.IsFailedPrecondition(err) || errorutils.IsConflict(err) || errorutils.IsAborted(err),
		unavailable: errorutils.IsUnavailable(err) || errorutils.IsInternal(err) || errorutils.IsDeadlineExceeded(err) || errorutils.IsResourceExhausted(err),
	}
}
