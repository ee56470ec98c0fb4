// Package apperr classifies failures so the transport layer can map them to
// status codes without inspecting error strings. Messages are part of the
// API contract: they name the violated rule and are returned to the caller.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure category of an Error.
type Kind int

const (
	// Validation: malformed or out-of-range input. Recoverable by the
	// caller with corrected input.
	Validation Kind = iota
	// Authorization: the acting user is not permitted this mutation.
	Authorization
	// Conflict: duplicate pending request, or a transition on an
	// already-resolved request.
	Conflict
	// NotFound: referenced group/expense/request/user does not exist.
	NotFound
	// Integrity: a recompute or multi-row write failed partway; the prior
	// ledger state remains authoritative and the operation may be re-run.
	Integrity
)

// String returns the kind's name for logs.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Integrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Error is a classified error with a caller-facing message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Message returns the caller-facing message of err, falling back to
// err.Error() for unclassified errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
