//go:build linux || darwin || freebsd || netbsd || openbsd

package metadata

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// UnixBinding queries metadata with stat(2) for files and fstatat(2) for
// directories. It follows symlinks, matching how the entry was classified
// by the enumeration pass.
type UnixBinding struct{}

// NewUnixBinding returns a Binding backed by golang.org/x/sys/unix.
func NewUnixBinding() *UnixBinding {
	return &UnixBinding{}
}

// DefaultBinding returns the native binding for this platform.
func DefaultBinding() Binding {
	return NewUnixBinding()
}

// StatFile queries a regular file. A directory at path is reported as
// ErrKindMismatch wrapping EISDIR.
func (b *UnixBinding) StatFile(path string) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Stat{}, err
	}
	if uint32(st.Mode)&unix.S_IFMT == unix.S_IFDIR {
		return Stat{}, fmt.Errorf("%w: %w", ErrKindMismatch, unix.EISDIR)
	}
	return fromStatT(&st), nil
}

// StatDir queries a directory. Anything else at path is reported as
// ErrKindMismatch wrapping ENOTDIR.
func (b *UnixBinding) StatDir(path string) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Fstatat(unix.AT_FDCWD, path, &st, 0); err != nil {
		return Stat{}, err
	}
	if uint32(st.Mode)&unix.S_IFMT != unix.S_IFDIR {
		return Stat{}, fmt.Errorf("%w: %w", ErrKindMismatch, unix.ENOTDIR)
	}
	return fromStatT(&st), nil
}

func fromStatT(st *unix.Stat_t) Stat {
	return Stat{
		UID:  st.Uid,
		GID:  st.Gid,
		Mode: uint32(st.Mode),
	}
}

// Ensure UnixBinding implements Binding.
var _ Binding = (*UnixBinding)(nil)
