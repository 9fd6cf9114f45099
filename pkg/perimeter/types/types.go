// Package types provides core data types for the perimeter inventory collector.
// It includes the filesystem entry descriptor handed to the metadata resolver,
// the inventory records produced by a collection pass, and helpers for parsing
// and formatting sizes.
package types

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Unresolved is the sentinel returned for a user or group id that could not
// be resolved. Real identifiers are never negative.
const Unresolved int64 = -1

// Kind classifies a filesystem entry.
type Kind int

const (
	// KindOther covers sockets, devices, pipes, symlinks and anything else
	// that is neither a regular file nor a directory.
	KindOther Kind = iota
	// KindFile is a regular file.
	KindFile
	// KindDirectory is a directory.
	KindDirectory
)

// Kind string constants.
const (
	kindFile      = "file"
	kindDirectory = "directory"
	kindOther     = "other"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return kindFile
	case KindDirectory:
		return kindDirectory
	default:
		return kindOther
	}
}

// MarshalText encodes the kind as its string name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ErrInvalidKind indicates that a kind string could not be parsed.
var ErrInvalidKind = errors.New("invalid entry kind")

// ParseKind parses "file", "directory" (or "dir") and "other" case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case kindFile, "f":
		return KindFile, nil
	case kindDirectory, "dir", "d":
		return KindDirectory, nil
	case kindOther, "o":
		return KindOther, nil
	default:
		return KindOther, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// ClassifyMode maps file mode type bits to an entry kind.
// Symlinks are never followed and classify as KindOther.
func ClassifyMode(mode fs.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDirectory
	default:
		return KindOther
	}
}

// FileSystemEntry describes a path produced by an enumeration pass.
// It is built once by the caller and never modified by the resolver.
type FileSystemEntry struct {
	// Path is the path of the entry, usually absolute.
	Path string `json:"path"`

	// Kind is the entry classification assigned at construction.
	Kind Kind `json:"kind"`
}

// NewEntry returns an entry for path with the given kind.
func NewEntry(path string, kind Kind) FileSystemEntry {
	return FileSystemEntry{Path: path, Kind: kind}
}

// OwnershipInfo holds the numeric owner and group of an entry.
// Either field is Unresolved when it could not be determined.
type OwnershipInfo struct {
	UserID  int64 `json:"uid"`
	GroupID int64 `json:"gid"`
}

// UnresolvedOwnership returns an OwnershipInfo with both ids set to the sentinel.
func UnresolvedOwnership() OwnershipInfo {
	return OwnershipInfo{UserID: Unresolved, GroupID: Unresolved}
}

// Resolved reports whether both ids were resolved.
func (o OwnershipInfo) Resolved() bool {
	return o.UserID >= 0 && o.GroupID >= 0
}

// Record is a single inventory record for one filesystem entry.
type Record struct {
	// Path is the absolute path to the entry.
	Path string `json:"path"`

	// Kind is the entry classification.
	Kind Kind `json:"kind"`

	// UserID is the owning user id, or Unresolved.
	UserID int64 `json:"uid"`

	// GroupID is the owning group id, or Unresolved.
	GroupID int64 `json:"gid"`

	// Permissions is the rendered permission string, empty when unresolved.
	Permissions string `json:"permissions,omitempty"`

	// Mode holds the permission and special bits; zero when unresolved.
	Mode fs.FileMode `json:"mode"`

	// Size is the entry size in bytes as reported by the enumeration pass.
	Size int64 `json:"size"`

	// ModTime is the last modification time reported by the enumeration pass.
	ModTime time.Time `json:"mod_time"`
}

// Resolved reports whether ownership and permissions were all resolved.
func (r *Record) Resolved() bool {
	return r.UserID >= 0 && r.GroupID >= 0 && r.Permissions != ""
}

// HumanSize returns the record size formatted with binary (IEC) units.
func (r *Record) HumanSize() string {
	return FormatSize(r.Size)
}

// CollectResult contains the aggregated results of a collection pass.
type CollectResult struct {
	// Records contains one record per collected entry.
	Records []Record `json:"records"`

	// DirsCollected is the number of directories recorded.
	DirsCollected int64 `json:"dirs_collected"`

	// FilesCollected is the number of regular files recorded.
	FilesCollected int64 `json:"files_collected"`

	// OthersCollected is the number of entries classified as KindOther.
	OthersCollected int64 `json:"others_collected"`

	// Unresolved is the number of file or directory records whose metadata
	// could not be resolved.
	Unresolved int64 `json:"unresolved"`

	// Elapsed is the total time taken by the pass.
	Elapsed time.Duration `json:"elapsed"`

	// Errors contains enumeration errors encountered during the pass.
	Errors []CollectError `json:"errors,omitempty"`
}

// CollectError pairs a path with an enumeration error message.
type CollectError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// CollectProgress reports real-time collection progress.
type CollectProgress struct {
	DirsCollected   int64  `json:"dirs_collected"`
	FilesCollected  int64  `json:"files_collected"`
	OthersCollected int64  `json:"others_collected"`
	Unresolved      int64  `json:"unresolved"`
	CurrentPath     string `json:"current_path"`

	// WalkComplete indicates that traversal is finished.
	WalkComplete bool `json:"walk_complete,omitempty"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It accepts plain bytes ("1024") and K, M, G, T suffixes with optional
// "B" or "iB" ("100K", "50MB", "2GiB"). All units are binary.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units, e.g. FormatSize(1024) returns "1.0 KiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
