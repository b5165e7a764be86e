package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/yndnr/hostgate/internal/telemetry/logger"
)

// ReadHeaderTimeout bounds how long a client may take to send headers.
const ReadHeaderTimeout = 10 * time.Second

// Server is one front listener.
type Server struct {
	name       string
	httpServer *http.Server
	listener   net.Listener
	logger     logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTLS serves TLS using cfg. The config should obtain certificates via
// GetCertificate so they can be swapped without a restart.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) {
		s.httpServer.TLSConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server named name (used in logs) for addr.
func New(name, addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		name: name,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: ReadHeaderTimeout,
		},
		logger: logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the address. Bind errors surface here rather than in Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	if s.httpServer.TLSConfig != nil {
		ln = tls.NewListener(ln, s.httpServer.TLSConfig)
	}
	s.listener = ln
	s.logger.Info("listener bound", "listener", s.name, "addr", ln.Addr().String(), "tls", s.httpServer.TLSConfig != nil)
	return nil
}

// Serve accepts connections until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Name returns the listener name.
func (s *Server) Name() string {
	return s.name
}

// Shutdown stops accepting and waits for active requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.listener != nil {
		// Bound but never served.
		if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}
	}
	s.logger.Info("listener closed", "listener", s.name)
	return err
}
