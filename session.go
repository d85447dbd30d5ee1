package reflux

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
)

// Session binds a Cache to a Notifier watching the same file. It is the
// usual entry point: open it once, call Config from any goroutine, and Close
// it when done.
type Session struct {
	cache    *Cache
	notifier *Notifier

	closeOnce sync.Once
	closeErr  error
}

// Open loads path and starts watching it for changes.
//
// A missing or unparsable file is fatal and no session is returned. A
// failure to register the filesystem watch is not: the session is returned
// without live reload (Watching reports false), reads still pick up edits
// through modification time checks, and the failure is reported through the
// WatchFailed signal.
//
// Canceling ctx stops the watcher, like Close.
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	cache, err := NewCache(path, opts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cache:    cache,
		notifier: NewNotifier(path),
	}
	_ = s.notifier.Start(ctx, cache) //nolint:errcheck // Reported via WatchFailed

	capitan.Emit(ctx, SessionOpened,
		KeyPath.Field(path),
		KeyFormat.Field(cache.parser.Format()),
	)

	return s, nil
}

// Config returns the current configuration snapshot, reloading it first if
// the file changed. It never returns nil, including after Close.
func (s *Session) Config() *Snapshot {
	return s.cache.Read()
}

// Cache returns the underlying cache for diagnostics.
func (s *Session) Cache() *Cache {
	return s.cache
}

// Watching reports whether file change notifications are still active.
func (s *Session) Watching() bool {
	return s.notifier.State() == NotifierRunning
}

// Invalidate forces the next Config call to reload.
func (s *Session) Invalidate() {
	s.cache.MarkStale()
}

// Close stops the watcher. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.notifier.Close()
		capitan.Emit(context.Background(), SessionClosed,
			KeyPath.Field(s.cache.path),
		)
	})
	return s.closeErr
}
