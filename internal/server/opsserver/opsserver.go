// Package opsserver serves metrics, health and state inspection on a
// separate listener.
package opsserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/core/handler"
	"github.com/yndnr/hostgate/internal/core/routing"
	"github.com/yndnr/hostgate/internal/infra/buildinfo"
	"github.com/yndnr/hostgate/internal/server/httpserver"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

// Source exposes the live state the ops endpoints report.
type Source interface {
	Routes(scheme domain.Scheme) []routing.Entry
	CachedEntries() []*handler.Entry
	TLSReady() bool
}

// RoutesView is the /routes document.
type RoutesView struct {
	Plain  []routing.Entry `json:"plain"`
	Secure []routing.Entry `json:"secure"`
	Cached []CachedView    `json:"cached"`
}

// CachedView describes one cached handler.
type CachedView struct {
	Scheme   string    `json:"scheme"`
	Host     string    `json:"host"`
	Target   string    `json:"target"`
	Unit     string    `json:"unit"`
	Closure  []string  `json:"closure"`
	LoadedAt time.Time `json:"loaded_at"`
}

type api struct {
	src     Source
	metrics *metric.Registry
	started time.Time
}

// NewHandler returns the ops router.
func NewHandler(src Source, m *metric.Registry) http.Handler {
	a := &api{src: src, metrics: m, started: time.Now()}

	r := mux.NewRouter()
	r.Handle("/metrics", metricsHandler(m)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	r.HandleFunc("/routes", a.routes).Methods(http.MethodGet)
	r.HandleFunc("/version", a.version).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	return r
}

// New creates the ops listener for addr.
func New(addr string, src Source, m *metric.Registry, l logger.Logger) *httpserver.Server {
	h := httpserver.Chain(NewHandler(src, m),
		httpserver.Recover(l),
		httpserver.RequestID(l),
	)
	return httpserver.New("ops", addr, h, httpserver.WithLogger(l))
}

func metricsHandler(m *metric.Registry) http.Handler {
	if m == nil {
		return metric.Handler()
	}
	return m.Handler()
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"time":      time.Now().UTC().Format(time.RFC3339),
		"uptime_s":  int64(time.Since(a.started).Seconds()),
		"tls_ready": a.src.TLSReady(),
	})
}

func (a *api) routes(w http.ResponseWriter, _ *http.Request) {
	view := RoutesView{
		Plain:  nonNil(a.src.Routes(domain.Plain)),
		Secure: nonNil(a.src.Routes(domain.Secure)),
		Cached: []CachedView{},
	}
	for _, e := range a.src.CachedEntries() {
		view.Cached = append(view.Cached, CachedView{
			Scheme:   e.Key.Scheme.String(),
			Host:     e.Key.Host,
			Target:   string(e.Target),
			Unit:     e.UnitID,
			Closure:  e.Closure,
			LoadedAt: e.LoadedAt,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func nonNil(entries []routing.Entry) []routing.Entry {
	if entries == nil {
		return []routing.Entry{}
	}
	return entries
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
