// Package blobaryerr defines the opaque error kinds that every BlobStore
// backend surfaces to its callers (see spec §7). Each kind is a sentinel
// comparable with errors.Is; a *Error additionally carries the underlying
// cause (when there is one), reachable through Unwrap by errors.Is and
// errors.As. github.com/pkg/errors.Cause stops at a *Error, which has no
// Cause method.
package blobaryerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the seven opaque error tags from spec §7.
type Kind string

// The error kinds the core surfaces, per spec §7.
const (
	// IO indicates an underlying filesystem or network failure.
	IO Kind = "io"
	// InvalidInput indicates a malformed digest string or out-of-range
	// integer.
	InvalidInput Kind = "invalid-input"
	// DataError indicates a hash mismatch between claimed and computed
	// digest.
	DataError Kind = "data-error"
	// NotWritable indicates a mutation was attempted on a read-only store.
	NotWritable Kind = "not-writable"
	// Removed indicates an index slot exists but its content file is gone.
	Removed Kind = "removed"
	// Unsupported indicates the backend does not implement this operation.
	Unsupported Kind = "unsupported"
	// Unexpected indicates an unreachable protocol state, e.g. a remote
	// backend returning an HTTP status that is neither 200 nor 404.
	Unexpected Kind = "unexpected"
)

// Error is a Blobary error: one of the seven Kinds, optionally wrapping an
// underlying cause.
type Error struct {
	Kind  Kind
	Cause error
}

// New returns a *Error of the given Kind with no message beyond the Kind
// itself.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap returns a *Error of the given Kind wrapping cause. It returns nil if
// cause is nil, matching errors.Wrap's convention.
func Wrap(cause error, kind Kind, msg string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: errors.Wrap(cause, msg)}
}

// Wrapf is like Wrap but with fmt.Sprintf-style formatting.
func Wrapf(cause error, kind Kind, format string, args ...interface{}) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: errors.Wrapf(cause, format, args...)}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

// Unwrap exposes the underlying cause so errors.Is/errors.As see through a
// *Error to whatever it wraps.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error of the same Kind, or is itself the
// bare Kind value. This lets callers write either
// errors.Is(err, blobaryerr.NotWritable) or
// errors.Is(err, &blobaryerr.Error{Kind: blobaryerr.NotWritable}).
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func (k Kind) Error() string {
	return string(k)
}

// Of reports the Kind of err if it is (or wraps) a *Error, and ok=true. If
// err is nil or not a Blobary error, it returns ("", false).
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
