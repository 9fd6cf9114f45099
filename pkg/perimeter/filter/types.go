// Package filter selects, orders and truncates inventory records. It supports
// path globs, kind, numeric owner and group, risky permission bits and age.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

// SortField specifies the record field to sort by.
type SortField int

const (
	// SortPath sorts records by path.
	SortPath SortField = iota
	// SortOwner sorts records by owning user id, then path.
	SortOwner
	// SortGroup sorts records by owning group id, then path.
	SortGroup
	// SortMode sorts records by permission bits, then path.
	SortMode
	// SortSize sorts records by size, then path.
	SortSize
	// SortAge sorts records by modification time, oldest last.
	SortAge
)

var sortFieldNames = map[SortField]string{
	SortPath:  "path",
	SortOwner: "owner",
	SortGroup: "group",
	SortMode:  "mode",
	SortSize:  "size",
	SortAge:   "age",
}

// String returns the string representation of the sort field.
func (s SortField) String() string {
	if name, ok := sortFieldNames[s]; ok {
		return name
	}
	return sortFieldNames[SortPath]
}

// ErrInvalidSortField indicates that the sort field string could not be parsed.
var ErrInvalidSortField = errors.New("invalid sort field")

// ParseSortField parses a sort field name case-insensitively.
func ParseSortField(s string) (SortField, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for field, name := range sortFieldNames {
		if name == want {
			return field, nil
		}
	}
	return SortPath, fmt.Errorf("%w: %q", ErrInvalidSortField, s)
}
