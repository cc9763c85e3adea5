// Package errors defines the closed set of error kinds the core must
// distinguish, per the error handling design: I/O is retried locally,
// corruption and invariant violations are never retried.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConflictError is returned when the bounded rebase loop at commit could
// not reconcile a transaction's changes against a newer root.
type ConflictError struct {
	Name     string
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on root object %q after %d rebase attempts", e.Name, e.Attempts)
}

// CorruptAtom is raised when an atom's tag is unknown, its declared length
// does not match the bytes available, or one of its references resolves
// outside the containing WAL frame.
type CorruptAtom struct {
	Reason string
}

func (e *CorruptAtom) Error() string {
	return fmt.Sprintf("corrupt atom: %s", e.Reason)
}

// CorruptFrame is raised when a WAL frame fails checksum validation or
// references an atom that does not parse.
type CorruptFrame struct {
	Reason string
}

func (e *CorruptFrame) Error() string {
	return fmt.Sprintf("corrupt frame: %s", e.Reason)
}

// ShortRead is raised when a block provider returns fewer bytes than an
// atom or frame declared.
type ShortRead struct {
	Want int
	Got  int
}

func (e *ShortRead) Error() string {
	return fmt.Sprintf("short read: wanted %d bytes, got %d", e.Want, e.Got)
}

// IOFailure wraps an I/O error from a block provider operation. The File
// provider returns it on the first failed append, flush or fsync, without
// retrying.
type IOFailure struct {
	Op  string
	Err error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("io failure during %s: %v", e.Op, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }

// RemoteUnavailable is raised when the cloud object store fails after the
// configured retry budget.
type RemoteUnavailable struct {
	Key     string
	Retries int
	Err     error
}

func (e *RemoteUnavailable) Error() string {
	return fmt.Sprintf("remote unavailable for %q after %d retries: %v", e.Key, e.Retries, e.Err)
}

func (e *RemoteUnavailable) Unwrap() error { return e.Err }

// ArrowNotAvailable is raised by the Arrow/Parquet bridge when built
// without the optional Arrow dependency.
type ArrowNotAvailable struct {
	Op string
}

func (e *ArrowNotAvailable) Error() string {
	return fmt.Sprintf("arrow support not available: %s", e.Op)
}

// IndexError is raised on out-of-range List access.
type IndexError struct {
	Index, Len int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range (len %d)", e.Index, e.Len)
}

// KeyError is raised on a missing key access that the caller required to
// exist.
type KeyError struct {
	Key string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key %q not found", e.Key)
}

// InvariantViolated marks an internal assertion failure. It is fatal: a
// caller that observes it mid-commit must abort the process rather than
// retry, since the durable state may no longer be trustworthy.
type InvariantViolated struct {
	Detail string
}

func (e *InvariantViolated) Error() string {
	return fmt.Sprintf("invariant violated: %s", e.Detail)
}

// Wrap annotates err with a cockroachdb/errors stack trace and message,
// used at every internal fallible call site instead of bare fmt.Errorf so
// that callers can errors.As/errors.Is through the wrapped chain.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with Printf-style formatting.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// New constructs a plain cockroachdb/errors error with a stack trace.
func New(msg string) error {
	return errors.New(msg)
}

// Newf is New with Printf-style formatting.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// As is a re-export of errors.As so callers need only import this package.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is a re-export of errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }
