package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Permission and special bits of st_mode. These values are fixed by POSIX.
const (
	permMask  uint32 = 0o777
	modeMask  uint32 = 0o7777
	setuidBit uint32 = 0o4000
	setgidBit uint32 = 0o2000
	stickyBit uint32 = 0o1000
)

// PermissionFormat selects how permission bits are rendered.
type PermissionFormat int

const (
	// FormatSymbolic renders nine ls-style characters, e.g. "rwsr-xr-t".
	FormatSymbolic PermissionFormat = iota
	// FormatOctal renders four octal digits, e.g. "0644".
	FormatOctal
	// FormatFlags renders named grants, e.g. "UserRead, UserWrite, GroupRead".
	FormatFlags
)

// Permission format string constants.
const (
	formatSymbolic = "symbolic"
	formatOctal    = "octal"
	formatFlags    = "flags"
)

// String returns the string representation of the format.
func (f PermissionFormat) String() string {
	switch f {
	case FormatOctal:
		return formatOctal
	case FormatFlags:
		return formatFlags
	default:
		return formatSymbolic
	}
}

// ErrInvalidFormat indicates that a permission format could not be parsed.
var ErrInvalidFormat = errors.New("invalid permission format")

// ParsePermissionFormat parses "symbolic", "octal" or "flags" (case-insensitive).
func ParsePermissionFormat(s string) (PermissionFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case formatSymbolic, "":
		return FormatSymbolic, nil
	case formatOctal:
		return FormatOctal, nil
	case formatFlags:
		return FormatFlags, nil
	default:
		return FormatSymbolic, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

// Render formats the permission and special bits of a raw st_mode value.
func (f PermissionFormat) Render(mode uint32) string {
	switch f {
	case FormatOctal:
		return fmt.Sprintf("%04o", mode&modeMask)
	case FormatFlags:
		return renderFlags(mode)
	default:
		return renderSymbolic(mode)
	}
}

// renderSymbolic returns the nine-character owner/group/other listing with
// setuid, setgid and sticky folded into the execute slots.
func renderSymbolic(mode uint32) string {
	const rwx = "rwxrwxrwx"
	var b [9]byte
	for i := 0; i < 9; i++ {
		if mode&(1<<uint(8-i)) != 0 {
			b[i] = rwx[i]
		} else {
			b[i] = '-'
		}
	}

	special := func(idx int, bit uint32, set, unset byte) {
		if mode&bit == 0 {
			return
		}
		if b[idx] == 'x' {
			b[idx] = set
		} else {
			b[idx] = unset
		}
	}
	special(2, setuidBit, 's', 'S')
	special(5, setgidBit, 's', 'S')
	special(8, stickyBit, 't', 'T')

	return string(b[:])
}

var flagNames = []struct {
	bit  uint32
	name string
}{
	{0o400, "UserRead"},
	{0o200, "UserWrite"},
	{0o100, "UserExecute"},
	{0o040, "GroupRead"},
	{0o020, "GroupWrite"},
	{0o010, "GroupExecute"},
	{0o004, "OtherRead"},
	{0o002, "OtherWrite"},
	{0o001, "OtherExecute"},
	{setuidBit, "SetUserId"},
	{setgidBit, "SetGroupId"},
	{stickyBit, "Sticky"},
}

func renderFlags(mode uint32) string {
	var names []string
	for _, f := range flagNames {
		if mode&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}

// FileMode converts the permission and special bits of a raw st_mode value
// to an fs.FileMode. File type bits are dropped.
func FileMode(mode uint32) fs.FileMode {
	m := fs.FileMode(mode & permMask)
	if mode&setuidBit != 0 {
		m |= fs.ModeSetuid
	}
	if mode&setgidBit != 0 {
		m |= fs.ModeSetgid
	}
	if mode&stickyBit != 0 {
		m |= fs.ModeSticky
	}
	return m
}
