package reflux

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key cache events.
// Callbacks run on the goroutine that triggered them and must not block.
type MetricsProvider interface {
	// OnStateChange is called when the cache transitions between states.
	OnStateChange(from, to State)

	// OnReloadSuccess is called when a new snapshot is published, including
	// the initial load. Duration covers read and parse.
	OnReloadSuccess(duration time.Duration)

	// OnReloadFailure is called when a reload fails.
	// Stage indicates where the failure occurred: "read" or "parse".
	OnReloadFailure(stage string, duration time.Duration)

	// OnMarkedStale is called when the cache is invalidated externally.
	OnMarkedStale()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)                  {}
func (NoOpMetricsProvider) OnReloadSuccess(_ time.Duration)           {}
func (NoOpMetricsProvider) OnReloadFailure(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnMarkedStale()                            {}
