// Package diag keeps recent log records in memory so the desktop window can
// show them and the user can export them to a file.
package diag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when none is given
const DefaultCapacity = 2000

// Levels shown in the diagnostics pane
const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
	LevelDebug   = "DEBUG"
)

// ExportPrefix and ExportTimeLayout name exported files
const (
	ExportPrefix     = "video_downloader_logs_"
	ExportTimeLayout = "20060102_150405"
)

// ErrEmpty is returned when there is nothing to export
var ErrEmpty = errors.New("no logs to export")

// Entry is one line of the diagnostics log
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Attrs   string
}

// String formats the entry as "[15:04:05] [LEVEL] message key=value"
func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	if e.Attrs != "" {
		b.WriteByte(' ')
		b.WriteString(e.Attrs)
	}
	return b.String()
}

// Buffer is a bounded ring of entries; it is safe for concurrent use
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	size    int
	subs    map[int]func(Entry)
	nextSub int

	// Version is written to the export header
	Version string
	now     func() time.Time
}

// NewBuffer creates a buffer holding at most capacity entries
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries: make([]Entry, capacity),
		subs:    make(map[int]func(Entry)),
		now:     time.Now,
	}
}

// Add appends an entry, dropping the oldest when full, and notifies subscribers
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	if e.Time.IsZero() {
		e.Time = b.now()
	}
	idx := (b.start + b.size) % len(b.entries)
	b.entries[idx] = e
	if b.size < len(b.entries) {
		b.size++
	} else {
		b.start = (b.start + 1) % len(b.entries)
	}
	subs := make([]func(Entry), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Entries returns a copy of the entries, oldest first
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.entries[(b.start+i)%len(b.entries)]
	}
	return out
}

// Len returns the number of stored entries
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Clear drops every entry
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start, b.size = 0, 0
	clear(b.entries)
}

// Subscribe registers fn for every new entry and returns a function that
// removes it. fn runs on the logging goroutine.
func (b *Buffer) Subscribe(fn func(Entry)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Text returns all entries, one per line
func (b *Buffer) Text() string {
	var sb strings.Builder
	for _, e := range b.Entries() {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Export writes all entries to a timestamped file in dir and returns its path
func (b *Buffer) Export(dir string) (string, error) {
	entries := b.Entries()
	if len(entries) == 0 {
		return "", ErrEmpty
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	ts := b.now()
	path := filepath.Join(dir, ExportPrefix+ts.Format(ExportTimeLayout)+".txt")

	var sb strings.Builder
	sb.WriteString("Video Downloader diagnostics\n")
	fmt.Fprintf(&sb, "Version: %s\n", b.version())
	fmt.Fprintf(&sb, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Exported: %s\n", ts.Format(time.RFC3339))
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteByte('\n')
	for _, e := range entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to export logs: %w", err)
	}
	return path, nil
}

func (b *Buffer) version() string {
	if b.Version == "" {
		return "dev"
	}
	return b.Version
}
