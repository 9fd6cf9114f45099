// Package metadata resolves POSIX ownership and permission metadata for
// filesystem entries.
//
// Every operation follows the same shape: classify the entry by kind,
// dispatch to the kind-specific native query, and on failure emit exactly one
// warning diagnostic and return a sentinel. Failures never propagate to the
// caller, so a collection pass over thousands of paths survives entries that
// vanish or become unreadable mid-scan.
//
//	r := metadata.New(metadata.WithDiagnostics(logging.Get("metadata")))
//	uid := r.GetOwner(types.NewEntry("/etc/passwd", types.KindFile))
package metadata

import (
	"errors"
	"io/fs"

	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// warnMessage is the diagnostic emitted for every failed query.
const warnMessage = "unable to get access control"

// Diagnostics receives one warning per failed query.
// *logging.Logger satisfies this interface.
type Diagnostics interface {
	Warn(msg string, keyvals ...interface{})
}

type discardDiagnostics struct{}

func (discardDiagnostics) Warn(string, ...interface{}) {}

// Metadata is the combined result of a single query.
type Metadata struct {
	// Ownership holds the owning user and group ids.
	Ownership types.OwnershipInfo

	// Permissions is the rendered permission string, empty when unresolved.
	Permissions string

	// Mode holds the permission and special bits, zero when unresolved.
	Mode fs.FileMode

	// Resolved is false when the query was skipped or failed.
	Resolved bool
}

func unresolvedMetadata() Metadata {
	return Metadata{Ownership: types.UnresolvedOwnership()}
}

// Resolver translates filesystem entries into ownership and permission facts.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	binding Binding
	diag    Diagnostics
	format  PermissionFormat
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBinding sets the native query binding. Nil is ignored.
func WithBinding(b Binding) Option {
	return func(r *Resolver) {
		if b != nil {
			r.binding = b
		}
	}
}

// WithDiagnostics sets the sink for failure diagnostics. Nil is ignored.
func WithDiagnostics(d Diagnostics) Option {
	return func(r *Resolver) {
		if d != nil {
			r.diag = d
		}
	}
}

// WithPermissionFormat sets how GetPermissions renders mode bits.
func WithPermissionFormat(f PermissionFormat) Option {
	return func(r *Resolver) {
		r.format = f
	}
}

// New creates a Resolver. Without options it queries the platform binding,
// discards diagnostics and renders permissions symbolically.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		binding: DefaultBinding(),
		diag:    discardDiagnostics{},
		format:  FormatSymbolic,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Format returns the permission format used by the resolver.
func (r *Resolver) Format() PermissionFormat {
	return r.format
}

// GetOwner returns the owning user id of the entry, or types.Unresolved.
func (r *Resolver) GetOwner(entry types.FileSystemEntry) int64 {
	st, ok := r.lookup(entry)
	if !ok {
		return types.Unresolved
	}
	return int64(st.UID)
}

// GetGroup returns the owning group id of the entry, or types.Unresolved.
func (r *Resolver) GetGroup(entry types.FileSystemEntry) int64 {
	st, ok := r.lookup(entry)
	if !ok {
		return types.Unresolved
	}
	return int64(st.GID)
}

// GetPermissions returns the rendered permission bits of the entry, or the
// empty string when they could not be resolved.
func (r *Resolver) GetPermissions(entry types.FileSystemEntry) string {
	st, ok := r.lookup(entry)
	if !ok {
		return ""
	}
	return r.format.Render(st.Mode)
}

// GetOwnership returns owner and group from a single query.
func (r *Resolver) GetOwnership(entry types.FileSystemEntry) types.OwnershipInfo {
	st, ok := r.lookup(entry)
	if !ok {
		return types.UnresolvedOwnership()
	}
	return types.OwnershipInfo{UserID: int64(st.UID), GroupID: int64(st.GID)}
}

// Resolve returns ownership, permissions and mode from a single query.
func (r *Resolver) Resolve(entry types.FileSystemEntry) Metadata {
	st, ok := r.lookup(entry)
	if !ok {
		return unresolvedMetadata()
	}
	return Metadata{
		Ownership:   types.OwnershipInfo{UserID: int64(st.UID), GroupID: int64(st.GID)},
		Permissions: r.format.Render(st.Mode),
		Mode:        FileMode(st.Mode),
		Resolved:    true,
	}
}

// Query runs the kind-specific native query and returns the classified
// failure instead of logging it. Callers that want the error kind use this;
// the Get* operations never return errors.
func (r *Resolver) Query(entry types.FileSystemEntry) (Stat, error) {
	var (
		st  Stat
		err error
	)
	switch entry.Kind {
	case types.KindFile:
		st, err = r.binding.StatFile(entry.Path)
	case types.KindDirectory:
		st, err = r.binding.StatDir(entry.Path)
	default:
		return Stat{}, &QueryError{Kind: UnsupportedKind, Path: entry.Path, Err: errUnsupportedKind}
	}
	if err != nil {
		return Stat{}, newQueryError(entry.Path, err)
	}
	return st, nil
}

// lookup runs Query and converts any failure other than UnsupportedKind into
// a single diagnostic.
func (r *Resolver) lookup(entry types.FileSystemEntry) (Stat, bool) {
	st, err := r.Query(entry)
	if err == nil {
		return st, true
	}

	var qe *QueryError
	if !errors.As(err, &qe) {
		qe = newQueryError(entry.Path, err)
	}
	if qe.Kind != UnsupportedKind {
		r.diag.Warn(warnMessage, "path", entry.Path, "error", qe.Detail(), "kind", qe.Kind.String())
	}
	return Stat{}, false
}
