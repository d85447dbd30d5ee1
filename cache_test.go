package reflux

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"golang.org/x/sync/errgroup"
)

func TestNewCache_FileNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.conf")

	c, err := NewCache(path)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if c != nil {
		t.Error("expected nil cache")
	}
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestNewCache_ParseErrorIsFatal(t *testing.T) {
	path := writeTemp(t, "app.conf", broken)

	_, err := NewCache(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Path != path || perr.Format != "hocon" {
		t.Errorf("unexpected ParseError fields: %+v", perr)
	}
}

func TestNewCache_InitialLoad(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	clock := clockz.NewFakeClock()
	metrics := &recordingMetrics{}

	c, err := NewCache(path, WithClock(clock), WithMetrics(metrics))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	snap := c.Current()
	if snap == nil {
		t.Fatal("expected snapshot after construction")
	}
	if got := mustString(t, snap, "app.name"); got != "X" {
		t.Errorf("expected X, got %q", got)
	}
	if snap.Version() != 1 {
		t.Errorf("expected version 1, got %d", snap.Version())
	}
	if !snap.LoadedAt().Equal(clock.Now()) {
		t.Errorf("expected LoadedAt from clock, got %v", snap.LoadedAt())
	}
	if !snap.ModTime().Equal(modTime(t, path)) {
		t.Errorf("expected ModTime %v, got %v", modTime(t, path), snap.ModTime())
	}
	if c.State() != StateHealthy {
		t.Errorf("expected healthy, got %s", c.State())
	}
	if c.Path() != path {
		t.Errorf("expected path %s, got %s", path, c.Path())
	}
	if metrics.successes != 1 {
		t.Errorf("expected 1 success metric, got %d", metrics.successes)
	}
}

func TestCache_ReadWithoutChangeDoesNotReparse(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	p := &countingParser{Parser: HOCONParser{}}

	c, err := NewCache(path, WithParser(p))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	first := c.Read()
	for i := 0; i < 10; i++ {
		if c.Read() != first {
			t.Fatal("expected the same snapshot while the file is unchanged")
		}
	}
	if p.calls.Load() != 1 {
		t.Errorf("expected 1 parse, got %d", p.calls.Load())
	}
}

func TestCache_PicksUpValidEdit(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	rewrite(t, path, configY)

	snap := c.Read()
	if got := mustString(t, snap, "app.name"); got != "Y" {
		t.Errorf("expected Y after edit, got %q", got)
	}
	if n, _ := snap.GetInt("app.maxConnections"); n != 7 {
		t.Errorf("expected 7 after edit, got %d", n)
	}
	if snap.Version() != 2 {
		t.Errorf("expected version 2, got %d", snap.Version())
	}
	if !snap.ModTime().Equal(modTime(t, path)) {
		t.Errorf("expected ModTime to track file, got %v", snap.ModTime())
	}
}

func TestCache_FallbackOnBadEdit(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	metrics := &recordingMetrics{}
	c, err := NewCache(path, WithMetrics(metrics), WithErrorHistory(4))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	s1 := c.Read()

	rewrite(t, path, broken)

	got := c.Read()
	if got != s1 {
		t.Fatal("expected the previous snapshot after a bad edit")
	}
	if name := mustString(t, got, "app.name"); name != "X" {
		t.Errorf("expected X retained, got %q", name)
	}
	if c.State() != StateDegraded {
		t.Errorf("expected degraded, got %s", c.State())
	}

	var perr *ParseError
	if !errors.As(c.LastError(), &perr) {
		t.Errorf("expected ParseError from LastError, got %v", c.LastError())
	}
	history := c.ErrorHistory()
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if !history[0].ModTime.Equal(modTime(t, path)) {
		t.Errorf("expected history ModTime of bad edit, got %v", history[0].ModTime)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.failures) != 1 || metrics.failures[0] != "parse" {
		t.Errorf("expected one parse failure metric, got %v", metrics.failures)
	}
	if len(metrics.transitions) != 1 || metrics.transitions[0] != "healthy->degraded" {
		t.Errorf("expected healthy->degraded, got %v", metrics.transitions)
	}
}

func TestCache_BadEditRetriedOnlyOnce(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	p := &countingParser{Parser: HOCONParser{}}
	c, err := NewCache(path, WithParser(p))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	rewrite(t, path, broken)
	for i := 0; i < 5; i++ {
		c.Read()
	}
	if got := p.calls.Load(); got != 2 {
		t.Fatalf("expected initial parse plus one retry, got %d", got)
	}

	// Re-touching the file triggers another attempt.
	touch(t, path, modTime(t, path).Add(time.Second))
	c.Read()
	if got := p.calls.Load(); got != 3 {
		t.Errorf("expected a retry after touch, got %d parses", got)
	}
}

func TestCache_RecoversAfterBadEdit(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	c, err := NewCache(path, WithErrorHistory(4))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	rewrite(t, path, broken)
	c.Read()
	rewrite(t, path, configY)

	if got := mustString(t, c.Read(), "app.name"); got != "Y" {
		t.Errorf("expected Y after recovery, got %q", got)
	}
	if c.State() != StateHealthy {
		t.Errorf("expected healthy, got %s", c.State())
	}
	if c.LastError() != nil {
		t.Errorf("expected LastError cleared, got %v", c.LastError())
	}
	if c.ErrorHistory() != nil {
		t.Errorf("expected history cleared, got %v", c.ErrorHistory())
	}
}

func TestCache_MarkStaleForcesReload(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	p := &countingParser{Parser: HOCONParser{}}
	metrics := &recordingMetrics{}
	c, err := NewCache(path, WithParser(p), WithMetrics(metrics))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	c.Read()

	c.MarkStale()
	snap := c.Read()

	if got := p.calls.Load(); got != 2 {
		t.Errorf("expected a reload after MarkStale, got %d parses", got)
	}
	if snap.Version() != 2 {
		t.Errorf("expected version 2, got %d", snap.Version())
	}

	// The cursor is back on the real time, so no further reloads.
	c.Read()
	if got := p.calls.Load(); got != 2 {
		t.Errorf("expected no reload once fresh, got %d parses", got)
	}
	if metrics.stale != 1 {
		t.Errorf("expected 1 stale metric, got %d", metrics.stale)
	}
}

func TestCache_MarkStaleSeesSameMtimeEdit(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	// Content changes but the modification time is restored.
	mod := modTime(t, path)
	if err := os.WriteFile(path, []byte(configY), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	touch(t, path, mod)

	if got := mustString(t, c.Read(), "app.name"); got != "X" {
		t.Fatalf("expected X before invalidation, got %q", got)
	}

	c.MarkStale()
	if got := mustString(t, c.Read(), "app.name"); got != "Y" {
		t.Errorf("expected Y after invalidation, got %q", got)
	}
}

func TestCache_MissingFileServesLastSnapshot(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	s1 := c.Read()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	c.MarkStale()

	if c.Read() != s1 {
		t.Fatal("expected last snapshot while the file is missing")
	}

	if err := os.WriteFile(path, []byte(configY), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := mustString(t, c.Read(), "app.name"); got != "Y" {
		t.Errorf("expected Y once the file returns, got %q", got)
	}
}

func TestCache_Reload(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	if err := c.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if c.Current().Version() != 2 {
		t.Errorf("expected version 2, got %d", c.Current().Version())
	}

	if err := os.WriteFile(path, []byte(broken), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	err = c.Reload()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if got := mustString(t, c.Current(), "app.name"); got != "X" {
		t.Errorf("expected X retained, got %q", got)
	}
}

func TestCache_ReadFailureStage(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	metrics := &recordingMetrics{}
	c, err := NewCache(path, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := c.Reload(); err == nil {
		t.Fatal("expected error reloading a missing file")
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.failures) != 1 || metrics.failures[0] != "read" {
		t.Errorf("expected one read failure metric, got %v", metrics.failures)
	}
}

func TestCache_LostRaceIsDiscarded(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	stale := c.slot.Load()

	rewrite(t, path, configY)
	winner := c.Read()
	if winner.Version() != 2 {
		t.Fatalf("expected version 2, got %d", winner.Version())
	}

	// A reload that started from the replaced slot must not overwrite it.
	if err := c.reload(stale, stale.cursor+1); err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if c.Current() != winner {
		t.Errorf("expected winner to stay, got version %d", c.Current().Version())
	}
}

func TestCache_ConcurrentReadersDuringEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.conf")
	if err := os.WriteFile(path, []byte(configX), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	mod := modTime(t, path)
	stop := make(chan struct{})
	var g errgroup.Group

	// Writer replaces the file atomically, alternating contents.
	g.Go(func() error {
		defer close(stop)
		for i := 0; i < 50; i++ {
			content := configX
			if i%2 == 0 {
				content = configY
			}
			tmp := filepath.Join(dir, fmt.Sprintf("app.conf.%d", i))
			if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
				return err
			}
			mod = mod.Add(time.Second)
			if err := os.Chtimes(tmp, mod, mod); err != nil {
				return err
			}
			if err := os.Rename(tmp, path); err != nil {
				return err
			}
		}
		return nil
	})

	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for {
				snap := c.Read()
				if snap == nil {
					return errors.New("nil snapshot")
				}
				name, err := snap.GetString("app.name")
				if err != nil {
					return err
				}
				if name != "X" && name != "Y" {
					return fmt.Errorf("unexpected name %q", name)
				}
				select {
				case <-stop:
					return nil
				default:
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent read failed: %v", err)
	}

	// The last write was configX (i == 49).
	if got := mustString(t, c.Read(), "app.name"); got != "X" {
		t.Errorf("expected final content X, got %q", got)
	}
}

func TestCache_LostFailureLeavesStateAlone(t *testing.T) {
	path := writeTemp(t, "app.conf", configX)
	metrics := &recordingMetrics{}
	c, err := NewCache(path, WithMetrics(metrics), WithErrorHistory(4))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	stale := c.slot.Load()

	rewrite(t, path, configY)
	winner := c.Read()

	// A reload that started before the winner published, then hit a broken file.
	rewrite(t, path, broken)
	err = c.reload(stale, stale.cursor+1)

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if c.Current() != winner {
		t.Error("expected the published snapshot to stay")
	}
	if c.State() != StateHealthy {
		t.Errorf("expected healthy, got %s", c.State())
	}
	if c.LastError() != nil {
		t.Errorf("expected no last error, got %v", c.LastError())
	}
	if len(c.ErrorHistory()) != 0 {
		t.Errorf("expected empty history, got %d", len(c.ErrorHistory()))
	}
	if len(metrics.failures) != 0 {
		t.Errorf("expected no failure metrics, got %v", metrics.failures)
	}
}

// mapParser returns a fixed tree built from typed containers.
type mapParser struct{}

func (mapParser) Parse(_ []byte) (map[string]any, error) {
	return map[string]any{
		"app": map[string]string{"name": "X"},
		"db":  map[any]any{"port": 5432},
	}, nil
}

func (mapParser) Format() string { return "custom" }

func TestCache_NormalizesCustomParserOutput(t *testing.T) {
	path := writeTemp(t, "app.custom", "ignored")

	c, err := NewCache(path, WithParser(mapParser{}))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	if got := mustString(t, c.Read(), "app.name"); got != "X" {
		t.Errorf("expected X, got %q", got)
	}
	if n, err := c.Read().GetInt("db.port"); err != nil || n != 5432 {
		t.Errorf("expected 5432, got %d (%v)", n, err)
	}

	c.MarkStale()
	if got := mustString(t, c.Read(), "app.name"); got != "X" {
		t.Errorf("expected X after reload, got %q", got)
	}
	if c.Current().Version() != 2 {
		t.Errorf("expected version 2, got %d", c.Current().Version())
	}
}
