// Package collector enumerates a directory tree with fastwalk and resolves
// ownership and permissions for every entry through the metadata resolver.
package collector

import (
	"fmt"

	"github.com/jamesainslie/perimeter/pkg/perimeter/config"
	"github.com/jamesainslie/perimeter/pkg/perimeter/metadata"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// Options configures a collection pass.
type Options struct {
	// Root is the starting directory.
	Root string

	// Exclude contains path prefixes or glob patterns to skip. Patterns are
	// matched against the full path and against the base name. "**" crosses
	// directory boundaries and may match no directory at all, so "/var/**/cache"
	// also excludes "/var/cache".
	Exclude []string

	// Workers is the fastwalk worker count. Zero uses the fastwalk default.
	Workers int

	// RecordCapacity preallocates the record slice. Zero starts empty.
	RecordCapacity int

	// MaxDepth limits how far below Root entries are recorded. Zero is unlimited.
	MaxDepth int

	// IncludeOther records sockets, devices, pipes and symlinks. Such records
	// are always unresolved.
	IncludeOther bool

	// Resolver resolves each entry. Nil uses metadata.New().
	Resolver *metadata.Resolver

	// OnRecord is called for every record as it is produced.
	// It must be safe to call from multiple goroutines.
	OnRecord func(types.Record)

	// OnProgress is called periodically with progress updates.
	// It must be safe to call from multiple goroutines.
	OnProgress func(types.CollectProgress)
}

// DefaultOptions returns options with the configured defaults.
func DefaultOptions() Options {
	return Options{
		Root:     config.DefaultRoot,
		Exclude:  config.DefaultExclusions,
		Workers:  config.DefaultWorkers,
		MaxDepth: config.DefaultMaxDepth,
	}
}

// Validate applies defaults and checks exclusion patterns.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = config.DefaultRoot
	}
	if o.Workers < 0 {
		o.Workers = 0
	}
	if o.RecordCapacity < 0 {
		o.RecordCapacity = 0
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = 0
	}
	if o.Resolver == nil {
		o.Resolver = metadata.New()
	}
	if _, err := compileExclusions(o.Exclude); err != nil {
		return fmt.Errorf("invalid exclusion: %w", err)
	}
	return nil
}
