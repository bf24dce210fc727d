// Package metrics holds the Prometheus instruments for the plugin runtime.
//
// Every recording method is safe on a nil *Metrics so that packages can take
// an optional metrics handle without guarding each call site.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Load metrics
	PluginLoadsTotal   *prometheus.CounterVec
	PluginLoadDuration prometheus.Histogram
	PluginsReady       prometheus.Gauge

	// Call metrics
	PluginCallsTotal   *prometheus.CounterVec
	PluginCallDuration *prometheus.HistogramVec

	// Host API metrics
	HostCallsTotal *prometheus.CounterVec

	// Main thread metrics
	MainThreadCallsTotal *prometheus.CounterVec
}

// New creates and registers all metrics on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PluginLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbit_plugin_loads_total",
				Help: "Total number of plugin load attempts",
			},
			[]string{"status"},
		),
		PluginLoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orbit_plugin_load_duration_seconds",
				Help:    "Plugin compile, instantiate and init duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		PluginsReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orbit_plugins_ready",
				Help: "Number of plugins that loaded successfully",
			},
		),
		PluginCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbit_plugin_calls_total",
				Help: "Total number of calls executed on plugin mailboxes",
			},
			[]string{"plugin", "status"},
		),
		PluginCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbit_plugin_call_duration_seconds",
				Help:    "Plugin call duration in seconds, queueing excluded",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"plugin"},
		),
		HostCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbit_host_calls_total",
				Help: "Total number of host functions invoked by plugins",
			},
			[]string{"function", "status"},
		),
		MainThreadCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbit_main_thread_calls_total",
				Help: "Total number of closures routed through the main thread bridge",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.PluginLoadsTotal,
		m.PluginLoadDuration,
		m.PluginsReady,
		m.PluginCallsTotal,
		m.PluginCallDuration,
		m.HostCallsTotal,
		m.MainThreadCallsTotal,
	)

	return m
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// ObserveLoad records the outcome of one plugin load.
func (m *Metrics) ObserveLoad(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PluginLoadsTotal.WithLabelValues(status(err)).Inc()
	m.PluginLoadDuration.Observe(d.Seconds())
	if err == nil {
		m.PluginsReady.Inc()
	}
}

// PluginClosed decrements the ready gauge.
func (m *Metrics) PluginClosed() {
	if m == nil {
		return
	}
	m.PluginsReady.Dec()
}

// ObserveCall records one call executed by a plugin mailbox.
func (m *Metrics) ObserveCall(plugin string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PluginCallsTotal.WithLabelValues(plugin, status(err)).Inc()
	m.PluginCallDuration.WithLabelValues(plugin).Observe(d.Seconds())
}

// ObserveHostCall records one host function invocation.
func (m *Metrics) ObserveHostCall(function string, err error) {
	if m == nil {
		return
	}
	m.HostCallsTotal.WithLabelValues(function, status(err)).Inc()
}

// ObserveMainThread records one bridge round trip.
func (m *Metrics) ObserveMainThread(err error) {
	if m == nil {
		return
	}
	m.MainThreadCallsTotal.WithLabelValues(status(err)).Inc()
}

// Handler returns the /metrics handler for registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RegisterEndpoint registers the /metrics endpoint
func RegisterEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", Handler(registry))
}
