// Package output renders inventory results in the formats offered by the
// perimeter CLI (pretty, plain, json, jsonl, yaml, csv, tsv, markdown, paths
// and template).
//
// Formatters are registered by name and looked up at runtime:
//
//	formatter, err := output.Get("plain")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

var logger = logging.Get("output")

// placeholder is printed in text formats for an unresolved id or permission.
const placeholder = "-"

// Stats contains counters for a collection pass.
type Stats struct {
	Dirs       int64         `json:"dirs" yaml:"dirs"`
	Files      int64         `json:"files" yaml:"files"`
	Others     int64         `json:"others" yaml:"others"`
	Unresolved int64         `json:"unresolved" yaml:"unresolved"`
	Errors     int64         `json:"errors" yaml:"errors"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Result contains everything a formatter needs.
type Result struct {
	// Records are the inventory records to render, already filtered and sorted.
	Records []types.Record `json:"records" yaml:"records"`

	// Stats are the counters of the pass that produced the records.
	Stats Stats `json:"stats" yaml:"stats"`

	// Source is the collection root.
	Source string `json:"source" yaml:"source"`

	// RunID is the stored run id, empty when the run was not persisted.
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	// PermissionFormat names the rendering used for Permissions.
	PermissionFormat string `json:"permission_format" yaml:"permission_format"`

	// TotalRecords is the number of records collected before filtering.
	TotalRecords int `json:"total_records" yaml:"total_records"`

	// Warnings are messages surfaced to the user alongside the records.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Interrupted is set when the pass was cancelled before completion.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
}

// NewResult builds a Result from a collection pass. Records start as the full
// record set and may be replaced by the caller after filtering.
func NewResult(source string, cr *types.CollectResult) *Result {
	r := &Result{Source: source}
	if cr == nil {
		return r
	}
	r.Records = cr.Records
	r.TotalRecords = len(cr.Records)
	r.Stats = Stats{
		Dirs:       cr.DirsCollected,
		Files:      cr.FilesCollected,
		Others:     cr.OthersCollected,
		Unresolved: cr.Unresolved,
		Errors:     int64(len(cr.Errors)),
		Duration:   cr.Elapsed,
	}
	return r
}

// TotalSize returns the sum of all record sizes in the result.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, rec := range r.Records {
		total += rec.Size
	}
	return total
}

// Formatter is the interface that all output formatters implement.
type Formatter interface {
	// Format writes the rendered result to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any existing one with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// WriteOption adjusts a formatter before Write renders with it.
type WriteOption func(Formatter)

// WithTemplate sets the template text of the template formatter. Other
// formatters ignore it, and an empty text keeps the default template.
func WithTemplate(text string) WriteOption {
	return func(f Formatter) {
		if t, ok := f.(*TemplateFormatter); ok && text != "" {
			t.SetTemplate(text)
		}
	}
}

// Write renders r with the named formatter and copies the result to out.
func Write(out io.Writer, format string, r *Result, opts ...WriteOption) error {
	formatter, err := Get(format)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(formatter)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("formatting %s output: %w", format, err)
	}

	logger.Debug("rendered output", "format", format, "records", len(r.Records), "bytes", buf.Len())

	if _, err := buf.WriteTo(out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// DisplayID renders an id for text formats, "-" for the unresolved sentinel.
func DisplayID(id int64) string {
	if id < 0 {
		return placeholder
	}
	return strconv.FormatInt(id, 10)
}

// DisplayPerms renders a permission string for text formats, "-" when empty.
func DisplayPerms(p string) string {
	if p == "" {
		return placeholder
	}
	return p
}

// columns are the header names shared by the tabular formatters.
var columns = []string{"KIND", "UID", "GID", "PERMS", "SIZE", "PATH"}

// row returns the tabular cells for a record, matching columns.
func row(rec *types.Record) []string {
	return []string{
		rec.Kind.String(),
		DisplayID(rec.UserID),
		DisplayID(rec.GroupID),
		DisplayPerms(rec.Permissions),
		rec.HumanSize(),
		rec.Path,
	}
}
