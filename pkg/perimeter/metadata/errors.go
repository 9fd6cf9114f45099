package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// ErrorKind classifies why a metadata query did not produce a result.
type ErrorKind int

const (
	// BindingFailure is any native query error not covered by another kind.
	BindingFailure ErrorKind = iota
	// NotFound means the path vanished between classification and query.
	NotFound
	// PermissionDenied means the caller lacks rights to query the path.
	PermissionDenied
	// UnsupportedKind means the entry is neither a file nor a directory.
	// It is detected before any query and never logged.
	UnsupportedKind
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case UnsupportedKind:
		return "unsupported_kind"
	default:
		return "binding_failure"
	}
}

// QueryError is the failure side of a metadata query.
type QueryError struct {
	Kind ErrorKind
	Path string
	Err  error
}

// Error implements error.
func (e *QueryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

// Unwrap returns the underlying native error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Detail returns the human-readable cause without the path.
func (e *QueryError) Detail() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

// ErrKindMismatch is returned by a Binding when the path exists but is not
// the kind that was queried. It classifies as BindingFailure.
var ErrKindMismatch = errors.New("entry kind does not match the path")

// errUnsupportedKind is the cause attached to UnsupportedKind errors.
var errUnsupportedKind = errors.New("entry is neither a regular file nor a directory")

// newQueryError wraps a native error with its classification.
func newQueryError(path string, err error) *QueryError {
	return &QueryError{Kind: classify(err), Path: path, Err: err}
}

// classify maps a native error to an ErrorKind.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrKindMismatch):
		return BindingFailure
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	case errors.Is(err, errUnsupportedKind):
		return UnsupportedKind
	default:
		return BindingFailure
	}
}

// KindOf returns the ErrorKind carried by err, or BindingFailure when err is
// not a *QueryError.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return BindingFailure
}
