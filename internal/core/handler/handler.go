package handler

import (
	"context"
	"net/http"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
)

// Exchange is what a handler receives for one request.
type Exchange struct {
	Writer  http.ResponseWriter
	Request *http.Request
	Scheme  domain.Scheme
	// Host is the request hostname without port.
	Host   string
	Target domain.RouteTarget
	Logger logger.Logger
}

// Context returns the request context.
func (x *Exchange) Context() context.Context {
	return x.Request.Context()
}

// Handler answers requests routed to it. A returned error is logged by the
// dispatcher and, when nothing has been written yet, answered with a 500.
type Handler interface {
	Serve(x *Exchange) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(x *Exchange) error

// Serve calls f(x).
func (f HandlerFunc) Serve(x *Exchange) error {
	return f(x)
}

// HTTP adapts a net/http handler.
func HTTP(h http.Handler) Handler {
	return HandlerFunc(func(x *Exchange) error {
		h.ServeHTTP(x.Writer, x.Request)
		return nil
	})
}
