package reflux

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/capitan"
)

// relevantOps are the fsnotify operations that can change what a reload
// would read. Chmod is included because touch(1) reports as Chmod on some
// platforms and re-touching is how callers recover from a bad edit.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod

// Notifier watches one file and marks an Invalidator stale whenever the file
// is modified. It watches the parent directory so that editors that replace
// the file by rename are still observed.
//
// A Notifier runs at most once: Created, Running, Stopped.
type Notifier struct {
	path string
	dir  string
	name string

	state atomic.Int32

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier creates a Notifier for path. Nothing is watched until Start.
func NewNotifier(path string) *Notifier {
	clean := filepath.Clean(path)
	return &Notifier{
		path: clean,
		dir:  filepath.Dir(clean),
		name: filepath.Base(clean),
	}
}

// State returns the notifier's lifecycle state.
func (n *Notifier) State() NotifierState {
	return NotifierState(n.state.Load())
}

// Start registers the watch and runs the monitoring loop on its own
// goroutine until ctx is canceled, Close is called, or the watch subsystem
// fails. Registration failures are returned as *WatchError and leave the
// notifier stopped.
func (n *Notifier) Start(ctx context.Context, sink Invalidator) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.State() {
	case NotifierRunning:
		return ErrNotifierStarted
	case NotifierStopped:
		return ErrNotifierClosed
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return n.failStart(ctx, fmt.Errorf("failed to create fsnotify watcher: %w", err))
	}
	if err := watcher.Add(n.dir); err != nil {
		watcher.Close()
		return n.failStart(ctx, fmt.Errorf("failed to watch directory %s: %w", n.dir, err))
	}

	n.launch(ctx, watcher.Events, watcher.Errors, watcher.Close, sink)
	return nil
}

// launch marks the notifier running and starts the loop over events and
// errs. release is called once the loop exits, before Close returns.
// The caller holds n.mu.
func (n *Notifier) launch(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, release func() error, sink Invalidator) {
	loopCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})
	n.state.Store(int32(NotifierRunning))

	capitan.Emit(ctx, WatchStarted,
		KeyPath.Field(n.path),
	)

	go n.run(loopCtx, events, errs, release, sink)
}

// Close stops the loop and releases the watch handle. It is safe to call
// more than once and on a notifier that never started.
func (n *Notifier) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		cancel, done := n.cancel, n.done
		if cancel == nil {
			n.state.Store(int32(NotifierStopped))
		}
		n.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
	})
	return nil
}

func (n *Notifier) failStart(ctx context.Context, err error) error {
	werr := &WatchError{Path: n.path, Err: err}
	n.state.Store(int32(NotifierStopped))
	capitan.Emit(ctx, WatchFailed,
		KeyPath.Field(n.path),
		KeyError.Field(werr.Error()),
	)
	return werr
}

// run drives loop and releases the watch handle when it exits.
func (n *Notifier) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, release func() error, sink Invalidator) {
	defer close(n.done)
	defer func() {
		n.state.Store(int32(NotifierStopped))
		capitan.Emit(context.WithoutCancel(ctx), WatchStopped,
			KeyPath.Field(n.path),
		)
	}()
	defer release() //nolint:errcheck // Nothing useful to do on close failure

	n.loop(ctx, events, errs, sink)
}

// loop is the monitoring loop. It returns on cancellation or on the first
// error it cannot survive.
func (n *Notifier) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, sink Invalidator) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				n.fail(ctx, errors.New("event channel closed"))
				return
			}
			if filepath.Base(event.Name) != n.name {
				continue
			}
			if event.Op&relevantOps == 0 {
				continue
			}

			capitan.Emit(ctx, WatchChangeDetected,
				KeyPath.Field(n.path),
				KeyOp.Field(event.Op.String()),
			)
			sink.MarkStale()

		case err, ok := <-errs:
			if !ok {
				n.fail(ctx, errors.New("error channel closed"))
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were dropped; assume the file changed.
				sink.MarkStale()
				continue
			}
			n.fail(ctx, err)
			return
		}
	}
}

func (n *Notifier) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	werr := &WatchError{Path: n.path, Err: err}
	capitan.Emit(ctx, WatchFailed,
		KeyPath.Field(n.path),
		KeyError.Field(werr.Error()),
	)
}
