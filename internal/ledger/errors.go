package ledger

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the core's own checks
// report, mirroring §7. Failures the core detects itself come back as a
// *Error; errors from the persistence adapter are in several paths
// (EntryStore's reads, MarkCommitted, Delete) returned unwrapped, and
// AsError reports false for those.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindTimeout         Kind = "timeout"
	KindInternal        Kind = "internal"
)

// Error is the core's sum-typed error value. Kind drives HTTP status
// mapping at the handler boundary; Err carries the wrapped cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErr(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapErr(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidArgument(message string) *Error { return newErr(KindInvalidArgument, message) }
func Unauthorized(message string) *Error    { return newErr(KindUnauthorized, message) }
func NotFound(message string) *Error        { return newErr(KindNotFound, message) }
func Conflict(message string) *Error        { return newErr(KindConflict, message) }
func Timeout(message string) *Error         { return newErr(KindTimeout, message) }
func Internal(message string) *Error        { return newErr(KindInternal, message) }

func InternalWrap(message string, err error) *Error { return wrapErr(KindInternal, message, err) }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsError extracts the *Error from err, if any is present in its chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
