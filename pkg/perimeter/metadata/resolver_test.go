package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBinding serves canned results and counts queries per kind.
type fakeBinding struct {
	stats map[string]Stat
	errs  map[string]error

	fileCalls atomic.Int64
	dirCalls  atomic.Int64
}

func newFakeBinding() *fakeBinding {
	return &fakeBinding{
		stats: make(map[string]Stat),
		errs:  make(map[string]error),
	}
}

func (b *fakeBinding) result(path string) (Stat, error) {
	if err, ok := b.errs[path]; ok {
		return Stat{}, err
	}
	if st, ok := b.stats[path]; ok {
		return st, nil
	}
	return Stat{}, fs.ErrNotExist
}

func (b *fakeBinding) StatFile(path string) (Stat, error) {
	b.fileCalls.Add(1)
	return b.result(path)
}

func (b *fakeBinding) StatDir(path string) (Stat, error) {
	b.dirCalls.Add(1)
	return b.result(path)
}

func (b *fakeBinding) calls() int64 {
	return b.fileCalls.Load() + b.dirCalls.Load()
}

// warning is a single recorded diagnostic.
type warning struct {
	msg     string
	keyvals map[string]interface{}
}

// recordingSink collects diagnostics for assertions.
type recordingSink struct {
	mu       sync.Mutex
	warnings []warning
}

func (s *recordingSink) Warn(msg string, keyvals ...interface{}) {
	kv := make(map[string]interface{}, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		kv[fmt.Sprint(keyvals[i])] = keyvals[i+1]
	}
	s.mu.Lock()
	s.warnings = append(s.warnings, warning{msg: msg, keyvals: kv})
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.warnings)
}

func (s *recordingSink) last() warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnings[len(s.warnings)-1]
}

func newTestResolver(opts ...Option) (*Resolver, *fakeBinding, *recordingSink) {
	b := newFakeBinding()
	sink := &recordingSink{}
	all := append([]Option{WithBinding(b), WithDiagnostics(sink)}, opts...)
	return New(all...), b, sink
}

func TestResolver_RegularFile(t *testing.T) {
	r, b, sink := newTestResolver()
	b.stats["/tmp/a"] = Stat{UID: 1000, GID: 1000, Mode: 0o100644}

	entry := types.NewEntry("/tmp/a", types.KindFile)

	assert.Equal(t, int64(1000), r.GetOwner(entry))
	assert.Equal(t, int64(1000), r.GetGroup(entry))
	assert.Equal(t, "rw-r--r--", r.GetPermissions(entry))

	assert.Equal(t, int64(3), b.fileCalls.Load())
	assert.Zero(t, b.dirCalls.Load())
	assert.Zero(t, sink.count())
}

func TestResolver_DirectoryUsesDirectoryQuery(t *testing.T) {
	r, b, sink := newTestResolver()
	b.stats["/srv"] = Stat{UID: 0, GID: 50, Mode: 0o041777}

	entry := types.NewEntry("/srv", types.KindDirectory)

	assert.Equal(t, int64(0), r.GetOwner(entry))
	assert.Equal(t, int64(50), r.GetGroup(entry))
	assert.Equal(t, "rwxrwxrwt", r.GetPermissions(entry))

	assert.Equal(t, int64(3), b.dirCalls.Load())
	assert.Zero(t, b.fileCalls.Load())
	assert.Zero(t, sink.count())
}

func TestResolver_OtherKindSkipsQuery(t *testing.T) {
	r, b, sink := newTestResolver()
	b.stats["/dev/null"] = Stat{UID: 0, GID: 0, Mode: 0o020666}

	entry := types.NewEntry("/dev/null", types.KindOther)

	assert.Equal(t, types.Unresolved, r.GetOwner(entry))
	assert.Equal(t, types.Unresolved, r.GetGroup(entry))
	assert.Empty(t, r.GetPermissions(entry))
	assert.Equal(t, types.UnresolvedOwnership(), r.GetOwnership(entry))
	assert.False(t, r.Resolve(entry).Resolved)

	assert.Zero(t, b.calls(), "no native query may be issued for KindOther")
	assert.Zero(t, sink.count(), "KindOther must not produce diagnostics")
}

func TestResolver_MissingPathWarnsOncePerCall(t *testing.T) {
	r, b, sink := newTestResolver()
	entry := types.NewEntry("/nonexistent", types.KindFile)

	assert.Equal(t, types.Unresolved, r.GetOwner(entry))
	require.Equal(t, 1, sink.count())

	w := sink.last()
	assert.Equal(t, warnMessage, w.msg)
	assert.Equal(t, "/nonexistent", w.keyvals["path"])
	assert.Equal(t, NotFound.String(), w.keyvals["kind"])
	assert.NotEmpty(t, w.keyvals["error"])

	assert.Equal(t, types.Unresolved, r.GetGroup(entry))
	assert.Empty(t, r.GetPermissions(entry))
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, int64(3), b.calls())
}

func TestResolver_FailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"vanished", fs.ErrNotExist, NotFound},
		{"parent replaced", fmt.Errorf("stat: %w", syscall.ENOTDIR), NotFound},
		{"permission denied", fs.ErrPermission, PermissionDenied},
		{"other native error", errors.New("stale file handle"), BindingFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, b, sink := newTestResolver()
			b.errs["/x"] = tt.err
			entry := types.NewEntry("/x", types.KindDirectory)

			_, err := r.Query(entry)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)

			md := r.Resolve(entry)
			assert.False(t, md.Resolved)
			assert.Equal(t, types.UnresolvedOwnership(), md.Ownership)
			assert.Empty(t, md.Permissions)
			require.Equal(t, 1, sink.count())
			assert.Equal(t, tt.want.String(), sink.last().keyvals["kind"])
		})
	}
}

func TestResolver_QueryUnsupportedKind(t *testing.T) {
	r, b, _ := newTestResolver()

	_, err := r.Query(types.NewEntry("/run/socket", types.KindOther))
	require.Error(t, err)
	assert.Equal(t, UnsupportedKind, KindOf(err))
	assert.Zero(t, b.calls())
}

func TestResolver_ResolveSingleQuery(t *testing.T) {
	r, b, _ := newTestResolver()
	b.stats["/usr/bin/passwd"] = Stat{UID: 0, GID: 0, Mode: 0o104755}

	md := r.Resolve(types.NewEntry("/usr/bin/passwd", types.KindFile))

	assert.True(t, md.Resolved)
	assert.Equal(t, types.OwnershipInfo{UserID: 0, GroupID: 0}, md.Ownership)
	assert.Equal(t, "rwsr-xr-x", md.Permissions)
	assert.Equal(t, fs.ModeSetuid|0o755, md.Mode)
	assert.Equal(t, int64(1), b.calls())
}

func TestResolver_GetOwnershipSingleDiagnostic(t *testing.T) {
	r, b, sink := newTestResolver()

	got := r.GetOwnership(types.NewEntry("/gone", types.KindFile))

	assert.Equal(t, types.UnresolvedOwnership(), got)
	assert.Equal(t, int64(1), b.calls())
	assert.Equal(t, 1, sink.count())
}

func TestResolver_PermissionFormat(t *testing.T) {
	r, b, _ := newTestResolver(WithPermissionFormat(FormatOctal))
	b.stats["/etc/shadow"] = Stat{UID: 0, GID: 42, Mode: 0o100640}

	assert.Equal(t, FormatOctal, r.Format())
	assert.Equal(t, "0640", r.GetPermissions(types.NewEntry("/etc/shadow", types.KindFile)))
}

func TestResolver_NoCaching(t *testing.T) {
	r, b, _ := newTestResolver()
	entry := types.NewEntry("/tmp/a", types.KindFile)

	b.stats["/tmp/a"] = Stat{UID: 1000, GID: 1000, Mode: 0o100644}
	assert.Equal(t, "rw-r--r--", r.GetPermissions(entry))

	b.stats["/tmp/a"] = Stat{UID: 1000, GID: 1000, Mode: 0o100600}
	assert.Equal(t, "rw-------", r.GetPermissions(entry))
	assert.Equal(t, int64(2), b.calls())
}

func TestResolver_DefaultsDiscardDiagnostics(t *testing.T) {
	b := newFakeBinding()
	r := New(WithBinding(b), WithDiagnostics(nil), WithBinding(nil))

	assert.NotPanics(t, func() {
		assert.Equal(t, types.Unresolved, r.GetOwner(types.NewEntry("/missing", types.KindFile)))
	})
	assert.Equal(t, int64(1), b.calls())
}

func TestResolver_ConcurrentUse(t *testing.T) {
	r, b, sink := newTestResolver()
	b.stats["/shared"] = Stat{UID: 7, GID: 8, Mode: 0o100600}

	const goroutines = 32
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				assert.Equal(t, int64(7), r.GetOwner(types.NewEntry("/shared", types.KindFile)))
				return
			}
			assert.Equal(t, types.Unresolved, r.GetGroup(types.NewEntry("/missing", types.KindFile)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, goroutines/2, sink.count())
	assert.Equal(t, int64(goroutines), b.calls())
}

func TestQueryError(t *testing.T) {
	cause := errors.New("boom")
	qe := &QueryError{Kind: BindingFailure, Path: "/p", Err: cause}

	assert.Equal(t, "/p: binding_failure: boom", qe.Error())
	assert.Equal(t, "boom", qe.Detail())
	assert.ErrorIs(t, qe, cause)
	assert.Equal(t, BindingFailure, KindOf(errors.New("plain")))
}
