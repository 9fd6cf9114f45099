// Package monitor watches a directory tree and re-resolves ownership and
// permissions whenever an entry is created, written or chmod'ed.
package monitor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/perimeter/pkg/perimeter/collector"
	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/jamesainslie/perimeter/pkg/perimeter/metadata"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// Op is the kind of change observed.
type Op int

const (
	// OpCreated is emitted for a new entry.
	OpCreated Op = iota
	// OpModified is emitted when an entry's content is written.
	OpModified
	// OpPermissions is emitted when an entry's mode or ownership changes.
	OpPermissions
	// OpRemoved is emitted when an entry is removed or renamed away.
	OpRemoved
)

// String returns the string representation of the op.
func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpPermissions:
		return "permissions"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the op as its string name.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Change is a single observed change with the freshly resolved record.
// Removed entries carry an unresolved record.
type Change struct {
	Path   string       `json:"path"`
	Op     Op           `json:"op"`
	Time   time.Time    `json:"time"`
	Record types.Record `json:"record"`
}

// Monitor watches directories and reports changes with resolved metadata.
type Monitor struct {
	resolver     *metadata.Resolver
	watcher      *fsnotify.Watcher
	add          func(string) error
	includeOther bool

	paths  map[string]bool
	mu     sync.RWMutex
	closed bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithIncludeOther reports changes to sockets, devices, pipes and symlinks.
func WithIncludeOther(on bool) Option {
	return func(m *Monitor) {
		m.includeOther = on
	}
}

// New creates a Monitor that resolves entries through r. A nil r uses metadata.New().
func New(r *metadata.Resolver, opts ...Option) (*Monitor, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = metadata.New()
	}

	m := &Monitor{
		resolver: r,
		watcher:  fsw,
		add:      fsw.Add,
		paths:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Watch adds root and every directory below it. Symlinks are not followed.
// It fails only when root itself cannot be watched.
func (m *Monitor) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return collector.ErrNotDirectory
	}

	return m.addTree(absRoot)
}

func (m *Monitor) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		// Only the root is fatal; a directory that cannot be watched is
		// logged and the walk goes on.
		if err := m.addWatch(path); err != nil && path == root {
			return err
		}
		return nil
	})
}

func (m *Monitor) addWatch(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.paths[path] {
		return nil
	}

	if err := m.add(path); err != nil {
		logging.Get("monitor").Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	m.paths[path] = true
	return nil
}

// Watched returns the watched directories in sorted order.
func (m *Monitor) Watched() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.paths))
	for p := range m.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Run processes events until ctx is cancelled or the monitor is closed.
// onChange is called from the Run goroutine only.
func (m *Monitor) Run(ctx context.Context, onChange func(Change)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if change, ok := m.handleEvent(event); ok && onChange != nil {
				onChange(change)
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logging.Get("monitor").Error("watcher error", "error", err)
		}
	}
}

func (m *Monitor) handleEvent(event fsnotify.Event) (Change, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return m.resolve(event.Name, OpCreated, true)
	case event.Has(fsnotify.Write):
		return m.resolve(event.Name, OpModified, false)
	case event.Has(fsnotify.Chmod):
		return m.resolve(event.Name, OpPermissions, false)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return m.removed(event.Name), true
	}
	return Change{}, false
}

// resolve issues a fresh query for path. Entries that vanished before the
// query are dropped; their removal event follows.
func (m *Monitor) resolve(path string, op Op, created bool) (Change, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return Change{}, false
	}

	kind := types.ClassifyMode(info.Mode())
	if kind == types.KindOther && !m.includeOther {
		return Change{}, false
	}

	if created && kind == types.KindDirectory {
		_ = m.addTree(path)
	}

	rec := collector.BuildRecord(m.resolver, path, kind, info)
	return Change{Path: path, Op: op, Time: time.Now(), Record: rec}, true
}

func (m *Monitor) removed(path string) Change {
	m.mu.Lock()
	for watched := range m.paths {
		if watched == path || isSubPath(watched, path) {
			_ = m.watcher.Remove(watched)
			delete(m.paths, watched)
		}
	}
	m.mu.Unlock()

	return Change{
		Path: path,
		Op:   OpRemoved,
		Time: time.Now(),
		Record: types.Record{
			Path:    path,
			Kind:    types.KindOther,
			UserID:  types.Unresolved,
			GroupID: types.Unresolved,
		},
	}
}

// Close stops watching and releases resources.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.paths = make(map[string]bool)
	return m.watcher.Close()
}

func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
