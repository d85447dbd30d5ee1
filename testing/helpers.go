// Package testing provides test utilities and helpers for reflux sessions.
package testing

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/reflux"
)

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// TempConfig writes content to name inside a fresh temporary directory and
// returns the file path.
func TempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// WriteConfig overwrites path and guarantees that its modification time
// moves strictly forward, even on filesystems with coarse timestamps.
func WriteConfig(t *testing.T, path, content string) {
	t.Helper()
	var prev time.Time
	if info, err := os.Stat(path); err == nil {
		prev = info.ModTime()
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	BumpModTime(t, path, prev)
}

// BumpModTime sets the modification time of path to a moment strictly
// after prev.
func BumpModTime(t *testing.T, path string, prev time.Time) {
	t.Helper()
	next := time.Now()
	if !next.After(prev) {
		next = prev.Add(time.Second)
	}
	if info, err := os.Stat(path); err == nil && !next.After(info.ModTime()) {
		next = info.ModTime().Add(time.Second)
	}
	if err := os.Chtimes(path, next, next); err != nil {
		t.Fatalf("failed to set modification time: %v", err)
	}
}

// RequireString fails the test if the snapshot does not hold want at path.
func RequireString(t *testing.T, snap *reflux.Snapshot, path, want string) {
	t.Helper()
	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	got, err := snap.GetString(path)
	if err != nil {
		t.Fatalf("GetString(%q) failed: %v", path, err)
	}
	if got != want {
		t.Fatalf("GetString(%q) = %q, want %q", path, got, want)
	}
}

// RequireInt fails the test if the snapshot does not hold want at path.
func RequireInt(t *testing.T, snap *reflux.Snapshot, path string, want int) {
	t.Helper()
	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	got, err := snap.GetInt(path)
	if err != nil {
		t.Fatalf("GetInt(%q) failed: %v", path, err)
	}
	if got != want {
		t.Fatalf("GetInt(%q) = %d, want %d", path, got, want)
	}
}

// RequireState fails the test immediately if the cache is not in the
// expected state.
func RequireState(t *testing.T, c *reflux.Cache, expected reflux.State) {
	t.Helper()
	if got := c.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// CountingParser wraps a Parser and counts Parse calls.
type CountingParser struct {
	reflux.Parser
	calls atomic.Int64
}

// NewCountingParser wraps p.
func NewCountingParser(p reflux.Parser) *CountingParser {
	return &CountingParser{Parser: p}
}

// Parse counts the call and delegates.
func (p *CountingParser) Parse(raw []byte) (map[string]any, error) {
	p.calls.Add(1)
	return p.Parser.Parse(raw)
}

// Calls returns the number of Parse calls so far.
func (p *CountingParser) Calls() int64 {
	return p.calls.Load()
}
