package httpserver

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen caps client supplied request ids.
const maxRequestIDLen = 128

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one runs outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Front returns the standard chain for a front listener.
func Front(scheme domain.Scheme, d http.Handler, l logger.Logger, m *metric.Registry) http.Handler {
	return Chain(d,
		Recover(l),
		RequestID(l),
		AccessLog(l),
		Metrics(scheme, m),
	)
}

// RequestID reuses the client's X-Request-ID or assigns a new ULID, echoes
// it on the response and stores it with a logger in the request context.
func RequestID(l logger.Logger) Middleware {
	l = logger.OrDefault(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > maxRequestIDLen {
				id = ulid.Make().String()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := logger.WithLogger(r.Context(), l)
			ctx = logger.WithRequestID(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog logs one line per completed request.
func AccessLog(l logger.Logger) Middleware {
	l = logger.OrDefault(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrapWriter(w)
			next.ServeHTTP(rw, r)

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"host", HostOf(r.Host),
				"path", r.URL.Path,
				"status", rw.Status(),
				"bytes", rw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", clientIP(r),
			}
			switch {
			case rw.Hijacked():
				l.Info("connection upgraded", attrs...)
			case rw.Status() >= 500:
				l.Error("request failed", attrs...)
			case rw.Status() >= 400:
				l.Warn("request rejected", attrs...)
			default:
				l.Info("request completed", attrs...)
			}
		})
	}
}

// Metrics records request counts and latency.
func Metrics(scheme domain.Scheme, m *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrapWriter(w)
			next.ServeHTTP(rw, r)
			m.RecordRequest(scheme.String(), rw.Status(), time.Since(start).Seconds())
		})
	}
}

// Recover turns a panic that escaped the dispatcher into a 500.
func Recover(l logger.Logger) Middleware {
	l = logger.OrDefault(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrapWriter(w)
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					l.Error("panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"panic", p,
						"path", r.URL.Path,
					)
					if !rw.Written() && !rw.Hijacked() {
						writeFailure(rw, domain.ErrHandlerRuntime)
					}
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// responseWriter records the status and size of a response. It passes
// hijacking and flushing through to the underlying writer so upgrade
// requests and streaming handlers keep working.
type responseWriter struct {
	http.ResponseWriter
	status   int
	bytes    int64
	written  bool
	hijacked bool
}

// wrapWriter wraps w, reusing w when it is already a responseWriter.
func wrapWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w}
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Status returns the status sent, or 200 when nothing was sent.
func (w *responseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Written reports whether headers have been sent.
func (w *responseWriter) Written() bool {
	return w.written
}

// Hijacked reports whether the connection was taken over.
func (w *responseWriter) Hijacked() bool {
	return w.hijacked
}

func (w *responseWriter) Flush() {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("httpserver: underlying writer cannot hijack")
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		w.hijacked = true
		w.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// clientIP returns the peer address of r without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
