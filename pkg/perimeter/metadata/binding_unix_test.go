//go:build linux || darwin || freebsd || netbsd || openbsd

package metadata

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceOwnership reads uid and gid through os.Stat as an independent check.
func referenceOwnership(t *testing.T, path string) (int64, int64) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	st, ok := info.Sys().(*syscall.Stat_t)
	require.True(t, ok, "expected *syscall.Stat_t")
	return int64(st.Uid), int64(st.Gid)
}

func TestUnixBinding_FileMatchesReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))
	require.NoError(t, os.Chmod(path, 0o644))

	sink := &recordingSink{}
	r := New(WithDiagnostics(sink))
	entry := types.NewEntry(path, types.KindFile)

	wantUID, wantGID := referenceOwnership(t, path)
	assert.Equal(t, wantUID, r.GetOwner(entry))
	assert.Equal(t, wantGID, r.GetGroup(entry))
	assert.Equal(t, "rw-r--r--", r.GetPermissions(entry))
	assert.Zero(t, sink.count())
}

func TestUnixBinding_DirectoryMatchesReference(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "d")
	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, os.Chmod(dir, 0o750))

	sink := &recordingSink{}
	r := New(WithDiagnostics(sink))
	entry := types.NewEntry(dir, types.KindDirectory)

	wantUID, wantGID := referenceOwnership(t, dir)
	assert.Equal(t, wantUID, r.GetOwner(entry))
	assert.Equal(t, wantGID, r.GetGroup(entry))
	assert.Equal(t, "rwxr-x---", r.GetPermissions(entry))
	assert.Zero(t, sink.count())
}

func TestUnixBinding_MissingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent")
	sink := &recordingSink{}
	r := New(WithDiagnostics(sink))
	entry := types.NewEntry(path, types.KindFile)

	assert.Equal(t, types.Unresolved, r.GetOwner(entry))
	require.Equal(t, 1, sink.count())
	assert.Equal(t, path, sink.last().keyvals["path"])
	assert.Equal(t, NotFound.String(), sink.last().keyvals["kind"])

	assert.Equal(t, types.Unresolved, r.GetGroup(entry))
	assert.Empty(t, r.GetPermissions(entry))
	assert.Equal(t, 3, sink.count())
}

func TestUnixBinding_KindMismatch(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	b := NewUnixBinding()

	_, err := b.StatDir(file)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.ErrorIs(t, err, syscall.ENOTDIR)
	assert.Equal(t, BindingFailure, classify(err))

	_, err = b.StatFile(tmp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Equal(t, BindingFailure, classify(err))

	// A missing parent directory still reads as a vanished path.
	_, err = b.StatDir(filepath.Join(file, "child"))
	require.Error(t, err)
	assert.Equal(t, NotFound, classify(err))
}

func TestResolver_DirectoryQueryOnFileWarnsBindingFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	sink := &recordingSink{}
	r := New(WithBinding(NewUnixBinding()), WithDiagnostics(sink))

	entry := types.FileSystemEntry{Path: file, Kind: types.KindDirectory}
	assert.Equal(t, types.Unresolved, r.GetOwner(entry))
	require.Equal(t, 1, sink.count())
	assert.Equal(t, BindingFailure.String(), sink.last().keyvals["kind"])
}

func TestUnixBinding_ReflectsChmodImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mutable")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.NoError(t, os.Chmod(path, 0o644))

	r := New()
	entry := types.NewEntry(path, types.KindFile)
	assert.Equal(t, "rw-r--r--", r.GetPermissions(entry))

	require.NoError(t, os.Chmod(path, fs.ModeSetuid|0o711))
	assert.Equal(t, "rws--x--x", r.GetPermissions(entry))

	require.NoError(t, os.Chmod(path, 0o600))
	assert.Equal(t, "rw-------", r.GetPermissions(entry))
}

func TestUnixBinding_DevNullAsOther(t *testing.T) {
	if _, err := os.Stat("/dev/null"); err != nil {
		t.Skip("/dev/null not available")
	}

	b := newFakeBinding()
	sink := &recordingSink{}
	r := New(WithBinding(b), WithDiagnostics(sink))
	entry := types.NewEntry("/dev/null", types.KindOther)

	assert.Equal(t, types.Unresolved, r.GetOwner(entry))
	assert.Equal(t, types.Unresolved, r.GetGroup(entry))
	assert.Empty(t, r.GetPermissions(entry))
	assert.Zero(t, b.calls())
	assert.Zero(t, sink.count())
}

func TestUnixBinding_ConcurrentSamePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	wantUID, _ := referenceOwnership(t, path)

	r := New()
	entry := types.NewEntry(path, types.KindFile)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, wantUID, r.GetOwner(entry))
		}()
	}
	wg.Wait()
}
