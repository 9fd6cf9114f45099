package filter

import (
	"cmp"
	"io/fs"
	"slices"
	"time"

	"github.com/gobwas/glob"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// Filter defines criteria for filtering, sorting and limiting records.
type Filter struct {
	// Include contains glob patterns. If non-empty, paths must match at least one.
	Include []string

	// Exclude contains glob patterns. Matching paths are excluded.
	Exclude []string

	// Kinds restricts records to the listed kinds. Empty allows all.
	Kinds []types.Kind

	// Owners restricts records to the listed user ids. Empty allows all.
	Owners []int64

	// Groups restricts records to the listed group ids. Empty allows all.
	Groups []int64

	// WorldWritable keeps only records writable by others.
	WorldWritable bool

	// SetID keeps only records carrying setuid or setgid.
	SetID bool

	// UnresolvedOnly keeps only records whose metadata could not be resolved.
	UnresolvedOnly bool

	// NewerThan excludes records modified longer ago than this duration.
	NewerThan time.Duration

	// SortBy specifies the field to sort results by.
	SortBy SortField

	// SortDescending reverses the sort order.
	SortDescending bool

	// Limit is the maximum number of records to return. 0 means unlimited.
	Limit int

	include []glob.Glob
	exclude []glob.Glob
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// New creates a Filter sorted by path with no limit.
// Patterns that do not compile are ignored.
func New(opts ...Option) *Filter {
	f := &Filter{SortBy: SortPath}

	for _, opt := range opts {
		opt(f)
	}

	f.include = compile(f.Include)
	f.exclude = compile(f.Exclude)
	return f
}

func compile(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out
}

// WithLimit sets the maximum number of records to return.
func WithLimit(limit int) Option {
	return func(f *Filter) {
		if limit < 0 {
			limit = 0
		}
		f.Limit = limit
	}
}

// WithInclude sets the include glob patterns.
func WithInclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Include = patterns
	}
}

// WithExclude sets the exclude glob patterns.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Exclude = patterns
	}
}

// WithKinds restricts records to the given kinds.
func WithKinds(kinds ...types.Kind) Option {
	return func(f *Filter) {
		f.Kinds = kinds
	}
}

// WithOwners restricts records to the given user ids.
func WithOwners(ids ...int64) Option {
	return func(f *Filter) {
		f.Owners = ids
	}
}

// WithGroups restricts records to the given group ids.
func WithGroups(ids ...int64) Option {
	return func(f *Filter) {
		f.Groups = ids
	}
}

// WithWorldWritable keeps only world-writable records.
func WithWorldWritable(on bool) Option {
	return func(f *Filter) {
		f.WorldWritable = on
	}
}

// WithSetID keeps only setuid or setgid records.
func WithSetID(on bool) Option {
	return func(f *Filter) {
		f.SetID = on
	}
}

// WithUnresolvedOnly keeps only unresolved records.
func WithUnresolvedOnly(on bool) Option {
	return func(f *Filter) {
		f.UnresolvedOnly = on
	}
}

// WithNewerThan keeps only records modified within d.
func WithNewerThan(d time.Duration) Option {
	return func(f *Filter) {
		f.NewerThan = d
	}
}

// WithSortBy sets the field to sort results by.
func WithSortBy(field SortField) Option {
	return func(f *Filter) {
		f.SortBy = field
	}
}

// WithSortDescending sets whether to sort in descending order.
func WithSortDescending(desc bool) Option {
	return func(f *Filter) {
		f.SortDescending = desc
	}
}

// Match reports whether the record satisfies every criterion.
func (f *Filter) Match(r types.Record) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, r.Kind) {
		return false
	}
	if len(f.Owners) > 0 && !slices.Contains(f.Owners, r.UserID) {
		return false
	}
	if len(f.Groups) > 0 && !slices.Contains(f.Groups, r.GroupID) {
		return false
	}
	if f.UnresolvedOnly && r.Resolved() {
		return false
	}
	if f.WorldWritable && r.Mode&0o002 == 0 {
		return false
	}
	if f.SetID && r.Mode&(fs.ModeSetuid|fs.ModeSetgid) == 0 {
		return false
	}
	if f.NewerThan > 0 && r.ModTime.Before(time.Now().Add(-f.NewerThan)) {
		return false
	}
	return f.matchPatterns(r.Path)
}

func (f *Filter) matchPatterns(path string) bool {
	if matchesAny(path, f.exclude) {
		return false
	}
	if len(f.include) > 0 && !matchesAny(path, f.include) {
		return false
	}
	return true
}

func matchesAny(path string, globs []glob.Glob) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// Sort returns a sorted copy of records. Ties are broken by path.
func (f *Filter) Sort(records []types.Record) []types.Record {
	sorted := slices.Clone(records)
	if sorted == nil {
		sorted = []types.Record{}
	}

	slices.SortStableFunc(sorted, func(a, b types.Record) int {
		var result int
		switch f.SortBy {
		case SortOwner:
			result = cmp.Compare(a.UserID, b.UserID)
		case SortGroup:
			result = cmp.Compare(a.GroupID, b.GroupID)
		case SortMode:
			result = cmp.Compare(a.Mode, b.Mode)
		case SortSize:
			result = cmp.Compare(a.Size, b.Size)
		case SortAge:
			result = -a.ModTime.Compare(b.ModTime)
		}
		if result == 0 {
			result = cmp.Compare(a.Path, b.Path)
		}

		if f.SortDescending {
			return -result
		}
		return result
	})

	return sorted
}

// Apply runs Match, Sort and Limit and returns a new slice.
func (f *Filter) Apply(records []types.Record) []types.Record {
	var matched []types.Record
	for _, r := range records {
		if f.Match(r) {
			matched = append(matched, r)
		}
	}

	sorted := f.Sort(matched)

	if f.Limit > 0 && len(sorted) > f.Limit {
		return sorted[:f.Limit]
	}
	return sorted
}
