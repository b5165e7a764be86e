package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/core/handler"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

// Router resolves a hostname to its route target for one scheme.
type Router interface {
	Resolve(scheme domain.Scheme, host string) (domain.RouteTarget, bool)
}

// Loader returns the cached handler for a key, loading it when needed.
type Loader interface {
	GetOrLoad(ctx context.Context, key domain.Key, target domain.RouteTarget) (*handler.Entry, error)
}

// Dispatcher routes requests of one scheme to their handlers.
type Dispatcher struct {
	scheme  domain.Scheme
	router  Router
	loader  Loader
	logger  logger.Logger
	metrics *metric.Registry
}

// NewDispatcher creates a dispatcher for scheme.
func NewDispatcher(scheme domain.Scheme, router Router, loader Loader, l logger.Logger, m *metric.Registry) *Dispatcher {
	return &Dispatcher{
		scheme:  scheme,
		router:  router,
		loader:  loader,
		logger:  logger.OrDefault(l),
		metrics: m,
	}
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := HostOf(r.Host)
	log := logger.L(r.Context()).With("scheme", d.scheme.String(), "host", host)

	target, ok := d.router.Resolve(d.scheme, host)
	if !ok {
		d.metrics.RecordUnknownHost(d.scheme.String())
		log.Warn("unknown host", "path", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	log = log.With("target", string(target))

	entry, err := d.loader.GetOrLoad(r.Context(), domain.Key{Scheme: d.scheme, Host: host}, target)
	if err != nil {
		log.Error("handler load failed", "error", err)
		writeFailure(w, err)
		return
	}

	sw := wrapWriter(w)
	x := &handler.Exchange{
		Writer:  sw,
		Request: r,
		Scheme:  d.scheme,
		Host:    host,
		Target:  target,
		Logger:  log,
	}
	if err := serve(entry.Handler, x); err != nil {
		log.Error("handler failed", "error", err)
		if !sw.Written() && !sw.Hijacked() {
			writeFailure(sw, err)
		}
	}
}

// serve runs h, turning a panic into a runtime failure. Aborted handlers
// keep unwinding so net/http drops the connection.
func serve(h handler.Handler, x *handler.Exchange) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				panic(r)
			}
			err = domain.ErrHandlerRuntime.WithDetails(fmt.Sprint(r))
		}
	}()
	if err := h.Serve(x); err != nil {
		if !errors.Is(err, domain.ErrHandlerRuntime) {
			err = domain.ErrHandlerRuntime.WithCause(err)
		}
		return err
	}
	return nil
}

func writeFailure(w http.ResponseWriter, err error) {
	code := domain.GetErrorCode(err)
	if code == "" {
		code = domain.ErrHandlerRuntime.Code
	}
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrHandlerLoad) {
		status = http.StatusBadGateway
	}
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
}

// HostOf strips the port from a Host header value. Bracketed IPv6
// literals lose their brackets.
func HostOf(hostport string) string {
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
}
