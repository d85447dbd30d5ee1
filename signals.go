package reflux

import "github.com/zoobzio/capitan"

// Cache signals.
var (
	// CacheLoaded is emitted when the initial snapshot is published.
	CacheLoaded = capitan.NewSignal(
		"reflux.cache.loaded",
		"Initial configuration snapshot loaded",
	)

	// CacheReloadSucceeded is emitted when a reload publishes a new snapshot.
	CacheReloadSucceeded = capitan.NewSignal(
		"reflux.cache.reload.succeeded",
		"Configuration reloaded",
	)

	// CacheReloadFailed is emitted when a reload cannot read or parse the
	// file. The previous snapshot remains in service.
	CacheReloadFailed = capitan.NewSignal(
		"reflux.cache.reload.failed",
		"Configuration reload failed, previous snapshot retained",
	)

	// CacheStatFailed is emitted when a read cannot stat the backing file.
	CacheStatFailed = capitan.NewSignal(
		"reflux.cache.stat.failed",
		"Configuration file stat failed",
	)

	// CacheMarkedStale is emitted when the cache is invalidated externally.
	CacheMarkedStale = capitan.NewSignal(
		"reflux.cache.marked.stale",
		"Configuration cache marked stale",
	)

	// CacheStateChanged is emitted when a cache transitions between states.
	CacheStateChanged = capitan.NewSignal(
		"reflux.cache.state.changed",
		"Cache state transition",
	)
)

// Notifier signals.
var (
	// WatchStarted is emitted when the watch loop begins.
	WatchStarted = capitan.NewSignal(
		"reflux.watch.started",
		"File change notifier started",
	)

	// WatchStopped is emitted when the watch loop exits.
	WatchStopped = capitan.NewSignal(
		"reflux.watch.stopped",
		"File change notifier stopped",
	)

	// WatchFailed is emitted when the watch subsystem fails. The notifier
	// does not restart.
	WatchFailed = capitan.NewSignal(
		"reflux.watch.failed",
		"File change notifier failed",
	)

	// WatchChangeDetected is emitted for each event on the target file.
	WatchChangeDetected = capitan.NewSignal(
		"reflux.watch.change.detected",
		"Change detected on watched file",
	)
)

// Session signals.
var (
	// SessionOpened is emitted when Open succeeds.
	SessionOpened = capitan.NewSignal(
		"reflux.session.opened",
		"Configuration session opened",
	)

	// SessionClosed is emitted on the first Close.
	SessionClosed = capitan.NewSignal(
		"reflux.session.closed",
		"Configuration session closed",
	)
)
