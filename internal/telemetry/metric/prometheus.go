package metric

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hostgate"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	UnknownHosts    *prometheus.CounterVec

	HandlerLoads   *prometheus.CounterVec
	CacheEvictions prometheus.Counter

	AdminSessions prometheus.Gauge
	AdminCommands *prometheus.CounterVec

	ConfigReloads *prometheus.CounterVec
	TLSReloads    *prometheus.CounterVec
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests handled, by scheme and status code.",
		}, []string{"scheme", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by scheme.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme"}),
		UnknownHosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_host_total",
			Help:      "Requests rejected because no route matched, by scheme.",
		}, []string{"scheme"}),
		HandlerLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_loads_total",
			Help:      "Handler unit loads, by result.",
		}, []string{"result"}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_cache_evictions_total",
			Help:      "Units removed from the handler cache.",
		}),
		AdminSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "admin_sessions",
			Help:      "Open admin console sessions.",
		}),
		AdminCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_commands_total",
			Help:      "Admin console commands, by command.",
		}, []string{"command"}),
		ConfigReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration loads, by result.",
		}, []string{"result"}),
		TLSReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tls_reloads_total",
			Help:      "TLS material reloads, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.UnknownHosts,
		r.HandlerLoads,
		r.CacheEvictions,
		r.AdminSessions,
		r.AdminCommands,
		r.ConfigReloads,
		r.TLSReloads,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() { global = NewRegistry() })
	return global
}

// Handler serves the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler serves r in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Register adds an extra collector.
func (r *Registry) Register(c prometheus.Collector) error {
	if r == nil {
		return nil
	}
	return r.registry.Register(c)
}

// Gatherer exposes the underlying registry for tests and embedding.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordRequest counts one served request.
func (r *Registry) RecordRequest(scheme string, status int, seconds float64) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(scheme, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(scheme).Observe(seconds)
}

// RecordUnknownHost counts one request without a route.
func (r *Registry) RecordUnknownHost(scheme string) {
	if r == nil {
		return
	}
	r.UnknownHosts.WithLabelValues(scheme).Inc()
}

// RecordHandlerLoad counts a load attempt; result is "ok" or "error".
func (r *Registry) RecordHandlerLoad(result string) {
	if r == nil {
		return
	}
	r.HandlerLoads.WithLabelValues(result).Inc()
}

// AddEvictions counts removed units.
func (r *Registry) AddEvictions(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.CacheEvictions.Add(float64(n))
}

// AdminSessionOpened tracks a new admin session.
func (r *Registry) AdminSessionOpened() {
	if r == nil {
		return
	}
	r.AdminSessions.Inc()
}

// AdminSessionClosed tracks a closed admin session.
func (r *Registry) AdminSessionClosed() {
	if r == nil {
		return
	}
	r.AdminSessions.Dec()
}

// RecordAdminCommand counts one admin command.
func (r *Registry) RecordAdminCommand(command string) {
	if r == nil {
		return
	}
	r.AdminCommands.WithLabelValues(command).Inc()
}

// RecordConfigReload counts a configuration load; result is "applied",
// "defaulted" or "rejected".
func (r *Registry) RecordConfigReload(result string) {
	if r == nil {
		return
	}
	r.ConfigReloads.WithLabelValues(result).Inc()
}

// RecordTLSReload counts a TLS material reload; result is "ok" or "error".
func (r *Registry) RecordTLSReload(result string) {
	if r == nil {
		return
	}
	r.TLSReloads.WithLabelValues(result).Inc()
}
