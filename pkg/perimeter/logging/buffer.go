package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultBufferSize is the number of entries kept for the terminal UI.
const DefaultBufferSize = 200

// Entry is one log line held in memory.
type Entry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string

	// Fields holds the key/value pairs rendered as "key=value".
	Fields string
}

// String renders the entry on one line.
func (e Entry) String() string {
	line := fmt.Sprintf("%s %-5s %s: %s", e.Time.Format("15:04:05"), strings.ToUpper(e.Level.String()), e.Component, e.Message)
	if e.Fields != "" {
		line += " " + e.Fields
	}
	return line
}

// Buffer is a fixed-size ring of recent log entries. Once full, each new
// entry replaces the oldest.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	start   int
	count   int
}

// NewBuffer creates a buffer holding up to size entries.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Add appends an entry.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[(b.start+b.count)%len(b.entries)] = e
	if b.count < len(b.entries) {
		b.count++
	} else {
		b.start = (b.start + 1) % len(b.entries)
	}
}

// Last returns up to n of the newest entries, oldest first.
func (b *Buffer) Last(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n = min(max(n, 0), b.count)
	out := make([]Entry, n)
	skip := b.count - n
	for i := range n {
		out[i] = b.entries[(b.start+skip+i)%len(b.entries)]
	}
	return out
}

// Entries returns every entry, oldest first.
func (b *Buffer) Entries() []Entry {
	return b.Last(b.Len())
}

// Len returns the number of entries held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start = 0
	b.count = 0
}

// formatFields renders alternating key/value arguments. A trailing key
// without a value is rendered with an empty value.
func formatFields(args []interface{}) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		var value interface{} = ""
		if i+1 < len(args) {
			value = args[i+1]
		}
		parts = append(parts, fmt.Sprintf("%v=%v", args[i], value))
	}
	return strings.Join(parts, " ")
}
