//go:build linux || darwin || freebsd || netbsd || openbsd

package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/perimeter/pkg/perimeter/collector"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startMonitor watches root and returns a channel receiving every change.
func startMonitor(t *testing.T, root string, opts ...Option) (*Monitor, <-chan Change) {
	t.Helper()

	m, err := New(nil, opts...)
	require.NoError(t, err)
	require.NoError(t, m.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan Change, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, func(c Change) { changes <- c })
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = m.Close()
	})
	return m, changes
}

// waitFor returns the first change for path with op, failing after a timeout.
func waitFor(t *testing.T, changes <-chan Change, path string, op Op) Change {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Path == path && c.Op == op {
				return c
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s on %s", op, path)
			return Change{}
		}
	}
}

func TestMonitor_WatchTracksSubdirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))

	m, _ := startMonitor(t, root)

	assert.Equal(t, []string{root, filepath.Join(root, "a"), sub}, m.Watched())
}

func TestMonitor_WatchSkipsDirectoriesThatFailToAdd(t *testing.T) {
	root := t.TempDir()
	denied := filepath.Join(root, "denied")
	deeper := filepath.Join(denied, "deeper")
	public := filepath.Join(root, "public")
	require.NoError(t, os.MkdirAll(deeper, 0o755))
	require.NoError(t, os.MkdirAll(public, 0o755))

	m, err := New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	add := m.add
	m.add = func(path string) error {
		if path == denied {
			return os.ErrPermission
		}
		return add(path)
	}

	require.NoError(t, m.Watch(root))
	assert.Equal(t, []string{root, deeper, public}, m.Watched())
}

func TestMonitor_WatchFailsWhenRootCannotBeAdded(t *testing.T) {
	root := t.TempDir()

	m, err := New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	m.add = func(string) error { return os.ErrPermission }

	assert.ErrorIs(t, m.Watch(root), os.ErrPermission)
	assert.Empty(t, m.Watched())
}

func TestMonitor_WatchRejectsFilesAndMissingPaths(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	defer m.Close()

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.ErrorIs(t, m.Watch(file), collector.ErrNotDirectory)
	assert.ErrorIs(t, m.Watch("/nonexistent/perimeter/path"), os.ErrNotExist)
}

func TestMonitor_CreateResolvesRecord(t *testing.T) {
	root := t.TempDir()
	_, changes := startMonitor(t, root)

	path := filepath.Join(root, "new.conf")
	require.NoError(t, os.WriteFile(path, []byte("k=v"), 0o600))

	c := waitFor(t, changes, path, OpCreated)
	assert.Equal(t, types.KindFile, c.Record.Kind)
	assert.Equal(t, int64(os.Getuid()), c.Record.UserID)
	assert.True(t, c.Record.Resolved())
}

func TestMonitor_ChmodReResolves(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "script.sh")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.NoError(t, os.Chmod(path, 0o644))

	_, changes := startMonitor(t, root)

	require.NoError(t, os.Chmod(path, 0o777))
	c := waitFor(t, changes, path, OpPermissions)
	assert.Equal(t, "rwxrwxrwx", c.Record.Permissions)
}

func TestMonitor_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	m, changes := startMonitor(t, root)

	dir := filepath.Join(root, "incoming")
	require.NoError(t, os.Mkdir(dir, 0o755))
	c := waitFor(t, changes, dir, OpCreated)
	assert.Equal(t, types.KindDirectory, c.Record.Kind)
	assert.Contains(t, m.Watched(), dir)

	nested := filepath.Join(dir, "payload")
	require.NoError(t, os.WriteFile(nested, nil, 0o644))
	waitFor(t, changes, nested, OpCreated)
}

func TestMonitor_RemoveEmitsUnresolved(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "doomed")
	require.NoError(t, os.Mkdir(dir, 0o755))

	m, changes := startMonitor(t, root)
	require.Contains(t, m.Watched(), dir)

	require.NoError(t, os.Remove(dir))
	c := waitFor(t, changes, dir, OpRemoved)

	assert.Equal(t, types.Unresolved, c.Record.UserID)
	assert.Equal(t, types.Unresolved, c.Record.GroupID)
	assert.Empty(t, c.Record.Permissions)
	assert.NotContains(t, m.Watched(), dir)
}

func TestMonitor_OtherKindsSkippedByDefault(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	defer m.Close()

	root := t.TempDir()
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink("target", link))

	_, ok := m.handleEvent(fsnotify.Event{Name: link, Op: fsnotify.Create})
	assert.False(t, ok)

	m.includeOther = true
	c, ok := m.handleEvent(fsnotify.Event{Name: link, Op: fsnotify.Create})
	require.True(t, ok)
	assert.Equal(t, types.KindOther, c.Record.Kind)
	assert.Equal(t, types.Unresolved, c.Record.UserID)
}

func TestMonitor_VanishedEntryDropped(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	defer m.Close()

	_, ok := m.handleEvent(fsnotify.Event{Name: filepath.Join(t.TempDir(), "gone"), Op: fsnotify.Write})
	assert.False(t, ok)
}

func TestMonitor_CloseIsIdempotent(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Empty(t, m.Watched())
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreated, "created"},
		{OpModified, "modified"},
		{OpPermissions, "permissions"},
		{OpRemoved, "removed"},
		{Op(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}
