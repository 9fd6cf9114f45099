package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// RotationConfig configures log file rotation behavior.
type RotationConfig struct {
	// MaxSize is the size in bytes that triggers rotation. Zero uses 10 MiB.
	MaxSize int64

	// MaxAge is the number of days to keep rotated files. Zero disables.
	MaxAge int

	// MaxBackups is the number of rotated files to keep. Zero keeps all.
	MaxBackups int

	// Daily rotates the log file when the day changes.
	Daily bool
}

// DefaultRotationConfig returns sensible defaults for rotation.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * types.MiB,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// ParseRotation builds a RotationConfig from a human-readable max size such as
// "10MB". An empty or invalid size falls back to the default.
func ParseRotation(maxSize string, maxAge, maxBackups int, daily bool) RotationConfig {
	cfg := RotationConfig{
		MaxSize:    DefaultRotationConfig().MaxSize,
		MaxAge:     maxAge,
		MaxBackups: maxBackups,
		Daily:      daily,
	}
	if size, err := types.ParseSize(maxSize); err == nil && size > 0 {
		cfg.MaxSize = size
	}
	return cfg
}

// backupStamp is the timestamp layout embedded in rotated file names. It
// sorts lexically in time order.
const backupStamp = "20060102T150405.000"

// RotatingWriter is an io.WriteCloser that rotates its file by size and day.
// It is safe for concurrent use and takes an advisory lock on every write so
// several perimeter processes can share one log file.
type RotatingWriter struct {
	path   string
	cfg    RotationConfig
	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	pruneBackups(path, cfg, time.Now())
	return w, nil
}

// Write writes p to the current file, rotating first when needed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	now := time.Now()
	if w.full(len(p)) || w.stale(now) {
		if err := w.rotate(now); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	if err := lockFile(w.file); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlockFile(w.file)

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the log file. Closing twice is a no-op.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil

	syncErr := f.Sync()
	closeErr := f.Close()
	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.file = f
	w.size = info.Size()
	w.opened = info.ModTime()
	return nil
}

// full reports whether appending n bytes would pass MaxSize. An empty file
// always takes the write.
func (w *RotatingWriter) full(n int) bool {
	return w.size > 0 && w.size+int64(n) > w.cfg.MaxSize
}

func (w *RotatingWriter) stale(now time.Time) bool {
	if !w.cfg.Daily {
		return false
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := w.opened.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

func (w *RotatingWriter) rotate(now time.Time) error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	if err := os.Rename(w.path, backupName(w.path, now)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.opened = now

	pruneBackups(w.path, w.cfg, now)
	return nil
}

// backupName returns the rotated name for path, e.g. perimeter-20260102T030405.000.log.
func backupName(path string, now time.Time) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + now.Format(backupStamp) + ext
}

// backups lists rotated files of path, newest first.
func backups(path string) []string {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	prefix := strings.TrimSuffix(filepath.Base(path), ext) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		if _, err := time.Parse(backupStamp, stamp); err != nil {
			continue
		}
		names = append(names, name)
	}

	slices.Sort(names)
	slices.Reverse(names)
	for i, name := range names {
		names[i] = filepath.Join(dir, name)
	}
	return names
}

// pruneBackups removes rotated files beyond MaxBackups or older than MaxAge
// days. Errors are ignored.
func pruneBackups(path string, cfg RotationConfig, now time.Time) {
	cutoff := now.AddDate(0, 0, -cfg.MaxAge)

	for i, name := range backups(path) {
		if cfg.MaxBackups > 0 && i >= cfg.MaxBackups {
			_ = os.Remove(name)
			continue
		}
		if cfg.MaxAge <= 0 {
			continue
		}
		if info, err := os.Stat(name); err == nil && info.ModTime().Before(cutoff) {
			_ = os.Remove(name)
		}
	}
}
