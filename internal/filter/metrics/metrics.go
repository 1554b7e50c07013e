package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the filter engine. A nil
// *Metrics is valid and records nothing, so components can take one as an
// optional dependency.
type Metrics struct {
	listBuilds      *prometheus.CounterVec
	listCacheLoads  *prometheus.CounterVec
	listCacheErrors *prometheus.CounterVec
	listEntries     *prometheus.GaugeVec
	compileDuration *prometheus.HistogramVec
	reloads         prometheus.Counter
	reloadErrs      prometheus.Counter
	scans           prometheus.Counter
	lookups         *prometheus.CounterVec
	decisions       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		listBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rrfilter",
			Name:      "list_builds_total",
			Help:      "Lists compiled from source files.",
		}, []string{"list"}),

		listCacheLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rrfilter",
			Name:      "list_cache_loads_total",
			Help:      "Lists loaded from a fresh cache file.",
		}, []string{"list"}),

		listCacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rrfilter",
			Name:      "list_cache_errors_total",
			Help:      "Cache files rejected or not written.",
		}, []string{"list", "op"}),

		listEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rrfilter",
			Name:      "list_entries",
			Help:      "Entries in the active compiled list.",
		}, []string{"list"}),

		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rrfilter",
			Name:      "list_compile_duration_seconds",
			Help:      "Time to compile or load a list.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"list", "source"}),

		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rrfilter",
			Name:      "reloads_total",
			Help:      "Successful list set reloads.",
		}),

		reloadErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rrfilter",
			Name:      "reload_errors_total",
			Help:      "Failed list set reloads.",
		}),

		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rrfilter",
			Name:      "phrase_scans_total",
			Help:      "Documents scanned for phrases.",
		}),

		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rrfilter",
			Name:      "item_lookups_total",
			Help:      "Item list lookups by outcome.",
		}, []string{"list", "outcome"}),

		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rrfilter",
			Name:      "decisions_total",
			Help:      "Checker decisions by result.",
		}, []string{"check", "result"}),

		registry: reg,
	}

	reg.MustRegister(
		m.listBuilds,
		m.listCacheLoads,
		m.listCacheErrors,
		m.listEntries,
		m.compileDuration,
		m.reloads,
		m.reloadErrs,
		m.scans,
		m.lookups,
		m.decisions,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordBuild records a list compiled from source.
func (m *Metrics) RecordBuild(list string, d time.Duration) {
	if m == nil {
		return
	}
	m.listBuilds.WithLabelValues(list).Inc()
	m.compileDuration.WithLabelValues(list, "source").Observe(d.Seconds())
}

// RecordCacheLoad records a list loaded from cache.
func (m *Metrics) RecordCacheLoad(list string, d time.Duration) {
	if m == nil {
		return
	}
	m.listCacheLoads.WithLabelValues(list).Inc()
	m.compileDuration.WithLabelValues(list, "cache").Observe(d.Seconds())
}

// RecordCacheError records a rejected cache read or a failed cache write.
func (m *Metrics) RecordCacheError(list, op string) {
	if m == nil {
		return
	}
	m.listCacheErrors.WithLabelValues(list, op).Inc()
}

// SetListEntries sets the entry count of an active list.
func (m *Metrics) SetListEntries(list string, n int) {
	if m == nil {
		return
	}
	m.listEntries.WithLabelValues(list).Set(float64(n))
}

// RecordReload records a successful reload.
func (m *Metrics) RecordReload() {
	if m == nil {
		return
	}
	m.reloads.Inc()
}

// RecordReloadError records a failed reload.
func (m *Metrics) RecordReloadError() {
	if m == nil {
		return
	}
	m.reloadErrs.Inc()
}

// RecordScan records a phrase scan.
func (m *Metrics) RecordScan() {
	if m == nil {
		return
	}
	m.scans.Inc()
}

// RecordLookup records an item lookup outcome: "hit", "miss" or "filtered".
func (m *Metrics) RecordLookup(list, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(list, outcome).Inc()
}

// RecordDecision records a checker decision.
func (m *Metrics) RecordDecision(check, result string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(check, result).Inc()
}
