package collector

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/jamesainslie/perimeter/pkg/perimeter/metadata"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// ErrNotDirectory is returned when the root is not a directory.
var ErrNotDirectory = errors.New("root is not a directory")

// Collector performs one parallel enumeration pass. A Collector is single use.
type Collector struct {
	opts     Options
	exclude  exclusions
	resolver *metadata.Resolver

	dirs       atomic.Int64
	files      atomic.Int64
	others     atomic.Int64
	unresolved atomic.Int64

	currentPath  atomic.Value
	lastProgress atomic.Int64
	walkComplete atomic.Bool

	errors   []types.CollectError
	errorsMu sync.Mutex

	records   []types.Record
	recordsMu sync.Mutex

	root string
}

// New creates a Collector. Options are validated and defaults applied.
func New(opts Options) (*Collector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ex, err := compileExclusions(opts.Exclude)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		opts:     opts,
		exclude:  ex,
		resolver: opts.Resolver,
		records:  make([]types.Record, 0, opts.RecordCapacity),
	}
	c.currentPath.Store("")
	return c, nil
}

// Collect walks the tree and returns every record. Entry-level failures are
// reported in the result rather than aborting the pass. Cancelling ctx stops
// the walk and returns the records gathered so far together with ctx.Err().
func (c *Collector) Collect(ctx context.Context) (*types.CollectResult, error) {
	log := logging.Get("collector")
	start := time.Now()

	root, err := validateRoot(c.opts.Root)
	if err != nil {
		return nil, err
	}
	c.root = root

	log.Info("collection started", "root", root, "workers", c.opts.Workers, "max_depth", c.opts.MaxDepth)
	c.currentPath.Store(root)
	c.reportProgressForce()

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: c.opts.Workers,
	}

	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() { close(done) })
	defer stop()

	walkErr := fastwalk.Walk(&conf, root, c.walkCallback(done))

	c.walkComplete.Store(true)
	c.reportProgressForce()

	result := c.result(time.Since(start))

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("collection cancelled", "root", root, "records", len(result.Records))
		return result, ctxErr
	}
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return result, walkErr
	}

	log.Info("collection finished",
		"root", root,
		"records", len(result.Records),
		"unresolved", result.Unresolved,
		"errors", len(result.Errors),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (c *Collector) result(elapsed time.Duration) *types.CollectResult {
	c.recordsMu.Lock()
	records := c.records
	c.recordsMu.Unlock()

	c.errorsMu.Lock()
	errs := c.errors
	c.errorsMu.Unlock()

	return &types.CollectResult{
		Records:         records,
		DirsCollected:   c.dirs.Load(),
		FilesCollected:  c.files.Load(),
		OthersCollected: c.others.Load(),
		Unresolved:      c.unresolved.Load(),
		Elapsed:         elapsed,
		Errors:          errs,
	}
}

func validateRoot(path string) (string, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", ErrNotDirectory
	}

	return root, nil
}

func (c *Collector) walkCallback(done <-chan struct{}) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		select {
		case <-done:
			return context.Canceled
		default:
		}

		if err != nil {
			c.addError(path, err)
			return nil
		}

		if path != c.root && c.exclude.match(path) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		kind := types.ClassifyMode(d.Type())
		if kind == types.KindOther && !c.opts.IncludeOther {
			return nil
		}

		c.process(path, kind, d)

		if kind == types.KindDirectory && c.opts.MaxDepth > 0 && c.depth(path) >= c.opts.MaxDepth {
			return fastwalk.SkipDir
		}
		return nil
	}
}

func (c *Collector) depth(path string) int {
	if path == c.root {
		return 0
	}
	rel := strings.TrimPrefix(path, c.root)
	rel = strings.TrimPrefix(rel, string(filepath.Separator))
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func (c *Collector) process(path string, kind types.Kind, d fs.DirEntry) {
	info, err := d.Info()
	if err != nil {
		c.addError(path, err)
		info = nil
	}

	switch kind {
	case types.KindDirectory:
		c.dirs.Add(1)
		c.currentPath.Store(path)
	case types.KindFile:
		c.files.Add(1)
	default:
		c.others.Add(1)
	}

	rec := BuildRecord(c.resolver, path, kind, info)
	if kind != types.KindOther && !rec.Resolved() {
		c.unresolved.Add(1)
	}

	c.recordsMu.Lock()
	c.records = append(c.records, rec)
	c.recordsMu.Unlock()

	if c.opts.OnRecord != nil {
		c.opts.OnRecord(rec)
	}

	c.reportProgress()
}

// BuildRecord resolves path through r and combines the result with the size
// and modification time from info, which may be nil.
func BuildRecord(r *metadata.Resolver, path string, kind types.Kind, info fs.FileInfo) types.Record {
	md := r.Resolve(types.NewEntry(path, kind))

	rec := types.Record{
		Path:        path,
		Kind:        kind,
		UserID:      md.Ownership.UserID,
		GroupID:     md.Ownership.GroupID,
		Permissions: md.Permissions,
		Mode:        md.Mode,
	}
	if info != nil {
		rec.Size = info.Size()
		rec.ModTime = info.ModTime()
	}
	return rec
}

func (c *Collector) addError(path string, err error) {
	c.errorsMu.Lock()
	c.errors = append(c.errors, types.CollectError{
		Path:  path,
		Error: err.Error(),
	})
	c.errorsMu.Unlock()
}

// reportProgress is throttled to one callback per 10ms.
func (c *Collector) reportProgress() {
	if c.opts.OnProgress == nil {
		return
	}

	now := time.Now().UnixMilli()
	last := c.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !c.lastProgress.CompareAndSwap(last, now) {
		return
	}

	c.sendProgress()
}

func (c *Collector) reportProgressForce() {
	if c.opts.OnProgress == nil {
		return
	}
	c.lastProgress.Store(time.Now().UnixMilli())
	c.sendProgress()
}

func (c *Collector) sendProgress() {
	currentPath, _ := c.currentPath.Load().(string)

	c.opts.OnProgress(types.CollectProgress{
		DirsCollected:   c.dirs.Load(),
		FilesCollected:  c.files.Load(),
		OthersCollected: c.others.Load(),
		Unresolved:      c.unresolved.Load(),
		CurrentPath:     currentPath,
		WalkComplete:    c.walkComplete.Load(),
	})
}

// Collect is a convenience wrapper that builds a Collector and runs it.
func Collect(ctx context.Context, opts Options) (*types.CollectResult, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	return c.Collect(ctx)
}
