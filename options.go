package reflux

import "github.com/zoobzio/clockz"

// Option configures a Cache or a Session.
type Option func(*options)

type options struct {
	parser       Parser
	clock        clockz.Clock
	metrics      MetricsProvider
	errorHistory int
}

func buildOptions(path string, opts []Option) options {
	o := options{
		clock:   clockz.RealClock,
		metrics: NoOpMetricsProvider{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parser == nil {
		o.parser = ParserFor(path)
	}
	return o
}

// WithParser sets the parser used for the initial load and every reload.
// Default: chosen from the file extension by ParserFor.
func WithParser(p Parser) Option {
	return func(o *options) {
		o.parser = p
	}
}

// WithClock sets the clock used to time reloads and stamp snapshots.
// Use this with clockz.FakeClock for deterministic tests.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetrics sets a metrics provider for observability integration.
// The provider receives callbacks on state changes, reload success/failure
// and external invalidation.
func WithMetrics(provider MetricsProvider) Option {
	return func(o *options) {
		if provider != nil {
			o.metrics = provider
		}
	}
}

// WithErrorHistory sets the number of recent reload failures to retain.
// Use 0 (default) to only retain the most recent error via LastError().
func WithErrorHistory(n int) Option {
	return func(o *options) {
		o.errorHistory = n
	}
}
