package metadata

// Stat is the subset of native stat data the resolver needs.
type Stat struct {
	// UID is the owning user id.
	UID uint32

	// GID is the owning group id.
	GID uint32

	// Mode is the raw st_mode value including file type bits.
	Mode uint32
}

// Binding is the OS metadata-query capability used by the resolver.
// Files and directories are queried through separate calls so an
// implementation may use a different native call for each kind.
//
// Implementations must be safe for concurrent use and must not cache:
// every call reflects the current on-disk state.
type Binding interface {
	// StatFile queries a regular file.
	StatFile(path string) (Stat, error)

	// StatDir queries a directory.
	StatDir(path string) (Stat, error)
}
