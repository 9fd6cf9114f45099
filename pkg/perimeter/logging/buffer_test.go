package logging_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
)

func TestBufferWraps(t *testing.T) {
	b := logging.NewBuffer(3)
	for i := range 5 {
		b.Add(logging.Entry{Message: fmt.Sprintf("m%d", i)})
	}

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}

	var got []string
	for _, e := range b.Entries() {
		got = append(got, e.Message)
	}
	if strings.Join(got, ",") != "m2,m3,m4" {
		t.Errorf("Entries() = %v, want [m2 m3 m4]", got)
	}

	last := b.Last(2)
	if len(last) != 2 || last[0].Message != "m3" || last[1].Message != "m4" {
		t.Errorf("Last(2) = %+v", last)
	}
	if len(b.Last(10)) != 3 {
		t.Errorf("Last(10) should cap at Len()")
	}
	if len(b.Last(-1)) != 0 {
		t.Errorf("Last(-1) should be empty")
	}

	b.Clear()
	if b.Len() != 0 || len(b.Entries()) != 0 {
		t.Error("Clear() left entries behind")
	}
}

func TestNewBufferDefaultSize(t *testing.T) {
	b := logging.NewBuffer(0)
	for range logging.DefaultBufferSize + 10 {
		b.Add(logging.Entry{})
	}
	if b.Len() != logging.DefaultBufferSize {
		t.Errorf("Len() = %d, want %d", b.Len(), logging.DefaultBufferSize)
	}
}

func TestEntryString(t *testing.T) {
	e := logging.Entry{
		Time:      time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Level:     logging.LevelWarn,
		Component: "metadata",
		Message:   "unable to get owner",
		Fields:    "path=/etc/shadow",
	}
	want := "15:04:05 WARN  metadata: unable to get owner path=/etc/shadow"
	if got := e.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestLoggerFillsBuffer(t *testing.T) {
	err := logging.Init(logging.Config{
		Level:      "info",
		Path:       filepath.Join(t.TempDir(), "buffered.log"),
		Components: map[string]string{"metadata": "warn"},
		BufferSize: 10,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = logging.Close() }()

	buf := logging.GetBuffer()
	if buf == nil {
		t.Fatal("GetBuffer() = nil with BufferSize set")
	}

	meta := logging.Get("metadata")
	meta.Info("filtered by component level")
	meta.With("kind", "directory").Warn("unable to get group", "path", "/root")

	entries := buf.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(entries), entries)
	}
	e := entries[0]
	if e.Component != "metadata" || e.Level != logging.LevelWarn || e.Message != "unable to get group" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Fields != "kind=directory path=/root" {
		t.Errorf("Fields = %q", e.Fields)
	}

	if err := logging.Close(); err != nil {
		t.Fatal(err)
	}
	if logging.GetBuffer() != nil {
		t.Error("GetBuffer() should be nil after Close")
	}
}

func TestNoBufferByDefault(t *testing.T) {
	if err := logging.Init(logging.Config{Level: "info", Path: filepath.Join(t.TempDir(), "plain.log")}); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = logging.Close() }()

	if logging.GetBuffer() != nil {
		t.Error("GetBuffer() should be nil without BufferSize")
	}
}
