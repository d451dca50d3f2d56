// Package errs defines the error taxonomy shared by the scoring engine and
// its hosts. Every error carries a stable Kind so transport layers can map
// failures to status codes without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind int

const (
	// Validation means the input was malformed (bad hole number,
	// non-positive strokes or stake, empty participant set).
	Validation Kind = iota
	// NotFound means a round, bet, or player reference did not resolve.
	NotFound
	// Forbidden means the requester is not allowed to perform the mutation.
	Forbidden
	// InvalidState means the operation is not legal in the current round or
	// bet status (cancel after completion, double completion).
	InvalidState
	// PartialFailure means one or more side bets failed to settle during
	// round completion; successful results are reported alongside.
	PartialFailure
	// Internal covers storage and other collaborator failures.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case InvalidState:
		return "invalid_state"
	case PartialFailure:
		return "partial_failure"
	case Internal:
		return "internal"
	}
	return "unknown"
}

// Error is a kinded error. The message is user-visible.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinel errors compare by kind and message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

// New creates a kinded error with a fixed message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err. Errors without a kind report Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
