package collector

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern is returned for an exclusion that does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

type exclusion struct {
	raw  string
	glob glob.Glob
}

type exclusions []exclusion

func compileExclusions(patterns []string) (exclusions, error) {
	out := make(exclusions, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, filepath.Separator)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err)
		}
		out = append(out, exclusion{raw: filepath.Clean(p), glob: g})
	}
	return out, nil
}

// match reports whether path equals or lies under a pattern, or matches it
// as a glob against the full path or the base name.
func (ex exclusions) match(path string) bool {
	base := filepath.Base(path)
	for _, e := range ex {
		if path == e.raw {
			return true
		}
		if len(path) > len(e.raw) && path[:len(e.raw)+1] == e.raw+string(filepath.Separator) {
			return true
		}
		if e.glob.Match(path) || e.glob.Match(base) {
			return true
		}
	}
	return false
}
