package reflux

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// staleModTime is the cursor value written by MarkStale. It is lower than any
// real modification time, so the next Read always reloads.
const staleModTime int64 = math.MinInt64

// Invalidator receives change notifications. MarkStale must be fast and must
// not block; it is called on the notifier's goroutine.
type Invalidator interface {
	MarkStale()
}

// InvalidatorFunc adapts a function to the Invalidator interface.
type InvalidatorFunc func()

// MarkStale calls f.
func (f InvalidatorFunc) MarkStale() { f() }

// Cache holds the current configuration snapshot for one file and reloads it
// lazily when the file's modification time moves past the last one observed.
//
// Reads never fail and never wait on another reader. Concurrent readers that
// observe staleness at the same moment may each reload; reload is a pure
// function of file content, so the duplicate work is harmless.
type Cache struct {
	path    string
	parser  Parser
	clock   clockz.Clock
	metrics MetricsProvider

	slot        atomic.Pointer[slot]
	state       atomic.Int32
	lastError   atomic.Pointer[error]
	statFailing atomic.Bool
	failures    *failureRing
}

// slot pairs the published snapshot with the modification time cursor it
// was loaded under. Both change together with one atomic swap, so the cursor
// never claims content newer than the snapshot beside it.
type slot struct {
	snap   *Snapshot
	cursor int64
}

// NewCache reads and parses path synchronously and returns a cache holding
// the result. A missing file yields an error matching ErrFileNotFound; a file
// that cannot be parsed yields a *ParseError. Either way no cache exists,
// since there is no earlier snapshot to fall back to.
func NewCache(path string, opts ...Option) (*Cache, error) {
	o := buildOptions(path, opts)
	c := &Cache{
		path:     path,
		parser:   o.parser,
		clock:    o.clock,
		metrics:  o.metrics,
		failures: newFailureRing(o.errorHistory),
	}
	c.state.Store(int32(StateHealthy))

	ctx := context.Background()
	start := c.clock.Now()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, &ParseError{Path: path, Format: c.parser.Format(), Err: err}
	}
	tree, err := c.parser.Parse(raw)
	if err != nil {
		return nil, &ParseError{Path: path, Format: c.parser.Format(), Err: err}
	}
	tree = Normalize(tree)

	mod, cursor, ok := c.observe(info.ModTime().UnixNano())
	if !ok {
		mod, cursor = info.ModTime(), staleModTime
	}
	snap := newSnapshot(tree, path, c.parser.Format(), 1, mod, c.clock.Now())
	c.slot.Store(&slot{snap: snap, cursor: cursor})

	capitan.Emit(ctx, CacheLoaded,
		KeyPath.Field(path),
		KeyFormat.Field(c.parser.Format()),
		KeyModTime.Field(mod.Format(time.RFC3339Nano)),
		KeyDuration.Field(c.clock.Since(start)),
	)
	c.metrics.OnReloadSuccess(c.clock.Since(start))

	return c, nil
}

// Path returns the configuration file path.
func (c *Cache) Path() string {
	return c.path
}

// State returns the current state of the cache.
func (c *Cache) State() State {
	return State(c.state.Load())
}

// Current returns the snapshot in the slot without checking the file.
func (c *Cache) Current() *Snapshot {
	return c.slot.Load().snap
}

// LastError returns the last reload error, or nil if the last reload
// succeeded.
func (c *Cache) LastError() error {
	ptr := c.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent reload failures, oldest first.
// Returns nil if error history is not enabled (see WithErrorHistory).
// The history is cleared by a successful reload.
func (c *Cache) ErrorHistory() []ReloadFailure {
	return c.failures.all()
}

// Read returns the current snapshot, reloading first if the file has been
// modified since it was last observed or the cache was marked stale.
// Read never returns nil.
func (c *Cache) Read() *Snapshot {
	seen := c.slot.Load()
	info, err := os.Stat(c.path)
	if err != nil {
		if c.statFailing.CompareAndSwap(false, true) {
			capitan.Emit(context.Background(), CacheStatFailed,
				KeyPath.Field(c.path),
				KeyError.Field(err.Error()),
			)
		}
		return seen.snap
	}
	c.statFailing.Store(false)

	if mod := info.ModTime().UnixNano(); mod > seen.cursor {
		_ = c.reload(seen, mod) //nolint:errcheck // Errors stored via setError
	}
	return c.slot.Load().snap
}

// MarkStale forces the next Read to reload regardless of the file's
// modification time. It does no I/O.
func (c *Cache) MarkStale() {
	for {
		s := c.slot.Load()
		if s.cursor == staleModTime {
			break
		}
		if c.slot.CompareAndSwap(s, &slot{snap: s.snap, cursor: staleModTime}) {
			break
		}
	}
	c.metrics.OnMarkedStale()
	capitan.Emit(context.Background(), CacheMarkedStale,
		KeyPath.Field(c.path),
	)
}

// Reload re-reads the file immediately and returns the failure, if any.
// On failure the previous snapshot stays in service.
func (c *Cache) Reload() error {
	seen := c.slot.Load()
	before := staleModTime
	if info, err := os.Stat(c.path); err == nil {
		before = info.ModTime().UnixNano()
	}
	return c.reload(seen, before)
}

// reload parses the file and publishes the result in place of seen, the slot
// the caller judged stale. before is the modification time observed before
// reading. If another reload or MarkStale replaced seen in the meantime, the
// result is dropped; the slot already holds something at least as current.
func (c *Cache) reload(seen *slot, before int64) error {
	ctx := context.Background()
	start := c.clock.Now()

	raw, err := os.ReadFile(c.path)
	if err != nil {
		return c.fail(ctx, "read", start, seen, before, err)
	}
	tree, err := c.parser.Parse(raw)
	if err != nil {
		return c.fail(ctx, "parse", start, seen, before, err)
	}
	tree = Normalize(tree)

	mod, cursor, ok := c.observe(before)
	if !ok {
		cursor = staleModTime
	}
	snap := newSnapshot(tree, c.path, c.parser.Format(), seen.snap.version+1, mod, c.clock.Now())
	if !c.slot.CompareAndSwap(seen, &slot{snap: snap, cursor: cursor}) {
		return nil
	}

	c.lastError.Store(nil)
	c.failures.clear()
	c.transitionState(ctx, StateHealthy)
	capitan.Emit(ctx, CacheReloadSucceeded,
		KeyPath.Field(c.path),
		KeyVersion.Field(int(snap.version)),
		KeyModTime.Field(mod.Format(time.RFC3339Nano)),
		KeyDuration.Field(c.clock.Since(start)),
	)
	c.metrics.OnReloadSuccess(c.clock.Since(start))

	return nil
}

// fail records a reload failure. The snapshot is left alone but the cursor
// still advances to the file's current modification time, so a broken edit
// is attempted once and then ignored until the file changes again. State and
// error history are only touched while the slot still holds seen's snapshot.
func (c *Cache) fail(ctx context.Context, stage string, start time.Time, seen *slot, before int64, cause error) error {
	err := &ParseError{Path: c.path, Format: c.parser.Format(), Err: cause}

	mod, cursor, ok := c.observe(before)
	if ok && cursor > seen.cursor {
		c.slot.CompareAndSwap(seen, &slot{snap: seen.snap, cursor: cursor})
	}

	// A concurrent reload already published something newer.
	if c.slot.Load().snap != seen.snap {
		return err
	}

	c.setError(err, mod)
	c.transitionState(ctx, StateDegraded)
	capitan.Emit(ctx, CacheReloadFailed,
		KeyPath.Field(c.path),
		KeyFormat.Field(c.parser.Format()),
		KeyError.Field(err.Error()),
		KeyModTime.Field(mod.Format(time.RFC3339Nano)),
	)
	c.metrics.OnReloadFailure(stage, c.clock.Since(start))

	return err
}

// observe stats the file after a load attempt. It returns the modification
// time and the cursor value to record. When the file changed between the
// pre-read stat and now, the cursor takes the earlier time so the next Read
// reloads again.
func (c *Cache) observe(before int64) (time.Time, int64, bool) {
	info, err := os.Stat(c.path)
	if err != nil {
		return time.Time{}, 0, false
	}
	mod := info.ModTime()
	cursor := mod.UnixNano()
	if before != cursor {
		cursor = min(before, cursor)
	}
	return mod, cursor, true
}

// setError stores an error atomically and adds it to the failure history.
func (c *Cache) setError(err error, modTime time.Time) {
	var e error = err
	c.lastError.Store(&e)
	c.failures.push(ReloadFailure{Err: err, At: c.clock.Now(), ModTime: modTime})
}

// transitionState updates the state and emits a state change event if changed.
func (c *Cache) transitionState(ctx context.Context, newState State) {
	oldState := State(c.state.Swap(int32(newState)))
	if oldState == newState {
		return
	}
	capitan.Emit(ctx, CacheStateChanged,
		KeyPath.Field(c.path),
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	c.metrics.OnStateChange(oldState, newState)
}
