package stitch

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures so that retry loops can decide what to do
// without inspecting error text.
type ErrorKind uint8

const (
	// UnknownError is never produced by this module; KindOf maps unclassified
	// errors to it.
	UnknownError ErrorKind = iota

	// TransientIO covers read and write failures against the backing store,
	// including undecodable inputs that may still be mid-write.
	TransientIO

	// ShapeMismatch means the comparison regions of two blocks cannot be aligned.
	ShapeMismatch

	// VerificationFailure means a file does not hold the expected datasets.
	VerificationFailure

	// Cancelled is an explicit interruption.
	Cancelled

	// ExhaustedRetries is raised once the attempt budget is spent.
	ExhaustedRetries
)

func (k ErrorKind) String() string {
	switch k {
	case TransientIO:
		return "transient I/O"
	case ShapeMismatch:
		return "shape mismatch"
	case VerificationFailure:
		return "verification failure"
	case Cancelled:
		return "cancelled"
	case ExhaustedRetries:
		return "exhausted retries"
	default:
		return "unknown error"
	}
}

// Error is an error tagged with an ErrorKind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

// NewError returns a formatted error of the given kind.  A %w verb in the
// format wraps the underlying error as usual.
func NewError(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapError tags err with kind unless err is nil or already classified.
func WrapError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: Cancelled, Err: err}
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the first classified error in the chain.
// Context cancellation is always reported as Cancelled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return UnknownError
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return UnknownError
}

// IsKind is shorthand for KindOf(err) == kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
