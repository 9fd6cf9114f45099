package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
)

// Tests in this file share the package's global state and do not run in parallel.

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"warn", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"verbose", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, logging.ErrInvalidLevel) {
			t.Errorf("ParseLevel(%q) error = %v, want ErrInvalidLevel", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{"defaults", logging.Config{Level: "info", Path: filepath.Join(dir, "a.log")}, false},
		{"component overrides", logging.Config{
			Level:      "info",
			Path:       filepath.Join(dir, "b.log"),
			Components: map[string]string{"metadata": "debug", "collector": "warn"},
		}, false},
		{"invalid level", logging.Config{Level: "loud", Path: filepath.Join(dir, "c.log")}, true},
		{"invalid component level", logging.Config{
			Level:      "info",
			Path:       filepath.Join(dir, "d.log"),
			Components: map[string]string{"metadata": "loud"},
		}, true},
		{"invalid console level", logging.Config{
			Level:        "info",
			Path:         filepath.Join(dir, "e.log"),
			ConsoleLevel: "loud",
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			defer logging.Close()

			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	if err := logging.Init(logging.Config{Level: "debug", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logger := logging.Get("metadata")
	logger.Warn("unable to get access control", "path", "/etc/shadow", "kind", "permission_denied")
	logger.Debug("resolved", "path", "/etc/hosts")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	for _, want := range []string{"metadata", "unable to get access control", "/etc/shadow", "resolved"} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %q:\n%s", want, content)
		}
	}
}

func TestComponentLevelFilters(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "filtered.log")
	err := logging.Init(logging.Config{
		Level:      "debug",
		Path:       logPath,
		Components: map[string]string{"quiet": "error"},
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("quiet").Info("should not appear")
	logging.Get("loud").Info("should appear")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "should not appear") {
		t.Error("component level override was ignored")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Error("expected message from default-level component")
	}
}

func TestLoggerBeforeInitIsRebuilt(t *testing.T) {
	logging.Close()
	early := logging.Get("early")
	early.Info("dropped before init")

	logPath := filepath.Join(t.TempDir(), "early.log")
	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	early.Info("kept after init")
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "dropped before init") {
		t.Error("message logged before Init reached the file")
	}
	if !strings.Contains(string(data), "kept after init") {
		t.Error("logger obtained before Init did not pick up the file writer")
	}
}

func TestWarningsCounter(t *testing.T) {
	if err := logging.Init(logging.Config{Level: "error", Path: filepath.Join(t.TempDir(), "w.log")}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer logging.Close()

	logger := logging.Get("counter")
	child := logger.With("run", "abc")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			child.Warn("filtered but counted")
		}()
	}
	wg.Wait()

	if got := logger.Warnings(); got != 10 {
		t.Errorf("Warnings() = %d, want 10", got)
	}
	if got := child.Warnings(); got != 10 {
		t.Errorf("child Warnings() = %d, want 10", got)
	}
}

func TestGetReturnsSameLogger(t *testing.T) {
	a := logging.Get("same")
	b := logging.Get("same")
	if a != b {
		t.Error("Get() returned different loggers for the same component")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if !strings.HasSuffix(cfg.Path, filepath.Join("perimeter", "perimeter.log")) {
		t.Errorf("Path = %q, want suffix perimeter/perimeter.log", cfg.Path)
	}
	if cfg.Rotation.MaxSize != 10*1024*1024 {
		t.Errorf("Rotation.MaxSize = %d", cfg.Rotation.MaxSize)
	}
}
