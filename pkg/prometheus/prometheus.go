// Package prometheus provides a reflux.MetricsProvider that records cache
// activity as Prometheus metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/reflux"
)

// Metrics records reloads, failures, invalidations and health for one
// configuration file. Every series carries a "path" label, so several caches
// may share one registry.
type Metrics struct {
	path string

	reloads        prometheus.Counter
	failures       *prometheus.CounterVec
	invalidations  prometheus.Counter
	reloadDuration prometheus.Observer
	healthy        prometheus.Gauge
}

// collectors are shared between every Metrics registered on one registry.
type collectors struct {
	reloads        *prometheus.CounterVec
	failures       *prometheus.CounterVec
	invalidations  *prometheus.CounterVec
	reloadDuration *prometheus.HistogramVec
	healthy        *prometheus.GaugeVec
}

func newCollectors() *collectors {
	return &collectors{
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reflux",
			Subsystem: "cache",
			Name:      "reloads_total",
			Help:      "Total number of snapshots published, including the initial load",
		}, []string{"path"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reflux",
			Subsystem: "cache",
			Name:      "reload_failures_total",
			Help:      "Total number of failed reloads by stage",
		}, []string{"path", "stage"}),

		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reflux",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Total number of times the cache was marked stale",
		}, []string{"path"}),

		reloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reflux",
			Subsystem: "cache",
			Name:      "reload_duration_seconds",
			Help:      "Time spent reading and parsing the configuration file",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"path"}),

		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reflux",
			Subsystem: "cache",
			Name:      "healthy",
			Help:      "Cache health (1=last reload succeeded, 0=serving a fallback snapshot)",
		}, []string{"path"}),
	}
}

func (c *collectors) register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.reloads, c.failures, c.invalidations, c.reloadDuration, c.healthy} {
		if err := reg.Register(col); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return err
			}
			if err := c.adopt(are.ExistingCollector); err != nil {
				return err
			}
		}
	}
	return nil
}

// adopt replaces a collector with the one already registered under the same
// descriptor.
func (c *collectors) adopt(existing prometheus.Collector) error {
	switch col := existing.(type) {
	case *prometheus.CounterVec:
		switch {
		case sameDesc(col, c.reloads):
			c.reloads = col
		case sameDesc(col, c.failures):
			c.failures = col
		case sameDesc(col, c.invalidations):
			c.invalidations = col
		}
	case *prometheus.HistogramVec:
		c.reloadDuration = col
	case *prometheus.GaugeVec:
		c.healthy = col
	}
	return nil
}

func sameDesc(a, b prometheus.Collector) bool {
	da, db := make(chan *prometheus.Desc, 1), make(chan *prometheus.Desc, 1)
	a.Describe(da)
	b.Describe(db)
	return (<-da).String() == (<-db).String()
}

// New creates Metrics for path and registers its collectors with reg.
// Registering a second path on the same registry reuses the existing
// collectors.
func New(reg prometheus.Registerer, path string) (*Metrics, error) {
	c := newCollectors()
	if err := c.register(reg); err != nil {
		return nil, err
	}

	m := &Metrics{
		path:           path,
		reloads:        c.reloads.WithLabelValues(path),
		failures:       c.failures.MustCurryWith(prometheus.Labels{"path": path}),
		invalidations:  c.invalidations.WithLabelValues(path),
		reloadDuration: c.reloadDuration.WithLabelValues(path),
		healthy:        c.healthy.WithLabelValues(path),
	}
	m.healthy.Set(1)
	return m, nil
}

// OnStateChange records the new health state.
func (m *Metrics) OnStateChange(_, to reflux.State) {
	if to == reflux.StateHealthy {
		m.healthy.Set(1)
		return
	}
	m.healthy.Set(0)
}

// OnReloadSuccess counts a published snapshot and its load time.
func (m *Metrics) OnReloadSuccess(d time.Duration) {
	m.reloads.Inc()
	m.reloadDuration.Observe(d.Seconds())
}

// OnReloadFailure counts a failed reload under its stage.
func (m *Metrics) OnReloadFailure(stage string, d time.Duration) {
	m.failures.WithLabelValues(stage).Inc()
	m.reloadDuration.Observe(d.Seconds())
}

// OnMarkedStale counts an invalidation.
func (m *Metrics) OnMarkedStale() {
	m.invalidations.Inc()
}

// Ensure Metrics implements reflux.MetricsProvider.
var _ reflux.MetricsProvider = (*Metrics)(nil)
