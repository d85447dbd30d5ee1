package reflux

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	configX = "app.name = \"X\"\napp.maxConnections = 5\n"
	configY = "app.name = \"Y\"\napp.maxConnections = 7\n"
	broken  = "app { name = \"X\"\n"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// rewrite replaces the file content and pushes its modification time at
// least one second past the previous one.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to update file: %v", err)
	}
	touch(t, path, info.ModTime().Add(time.Second))
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}
}

func modTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	return info.ModTime()
}

func mustString(t *testing.T, snap *Snapshot, path string) string {
	t.Helper()
	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	v, err := snap.GetString(path)
	if err != nil {
		t.Fatalf("GetString(%q) failed: %v", path, err)
	}
	return v
}

// countingParser counts Parse calls.
type countingParser struct {
	Parser
	calls atomic.Int64
}

func (p *countingParser) Parse(raw []byte) (map[string]any, error) {
	p.calls.Add(1)
	return p.Parser.Parse(raw)
}

// recordingMetrics captures metrics callbacks.
type recordingMetrics struct {
	mu          sync.Mutex
	successes   int
	failures    []string
	transitions []string
	stale       int
}

func (m *recordingMetrics) OnStateChange(from, to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from.String()+"->"+to.String())
}

func (m *recordingMetrics) OnReloadSuccess(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *recordingMetrics) OnReloadFailure(stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, stage)
}

func (m *recordingMetrics) OnMarkedStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale++
}

// waitFor polls condition until it holds or timeout elapses.
func waitFor(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// staleSink forwards MarkStale calls to a buffered channel.
func staleSink() (Invalidator, <-chan struct{}) {
	ch := make(chan struct{}, 64)
	return InvalidatorFunc(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}), ch
}

func expectStale(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for MarkStale")
	}
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
