package adminserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

// DefaultIdleTimeout closes sessions that send nothing for this long.
const DefaultIdleTimeout = 30 * time.Minute

// Config holds the console listener settings.
type Config struct {
	Addr string
	// RateLimit is commands per second per session; 0 disables the limit.
	RateLimit float64
	// Allow restricts peers; empty allows any peer.
	Allow       []netip.Prefix
	IdleTimeout time.Duration
}

// Server accepts console sessions.
type Server struct {
	cfg     Config
	handler *Handler
	logger  logger.Logger
	metrics *metric.Registry

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup

	mu       sync.Mutex
	closing  bool
	sessions map[net.Conn]struct{}
}

// New creates a console server.
func New(cfg Config, ctrl Controller, l logger.Logger, m *metric.Registry) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	l = logger.OrDefault(l).With("listener", "admin")
	return &Server{
		cfg:      cfg,
		handler:  NewHandler(ctrl, l, m),
		logger:   l,
		metrics:  m,
		sessions: make(map[net.Conn]struct{}),
	}
}

// Listen binds the console address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running.Store(true)
	s.logger.Info("listener bound", "addr", ln.Addr().String(), "allow", len(s.cfg.Allow), "rate_limit", s.cfg.RateLimit)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts sessions until Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		if !s.permitted(conn.RemoteAddr()) {
			s.logger.Warn("admin peer rejected", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(conn)
		}()
	}
}

// Shutdown stops accepting, closes live sessions and waits for their
// goroutines until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
	}

	s.mu.Lock()
	s.closing = true
	for conn := range s.sessions {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("listener closed")
		if errors.Is(closeErr, net.ErrClosed) {
			return nil
		}
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) permitted(addr net.Addr) bool {
	if len(s.cfg.Allow) == 0 {
		return true
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return false
	}
	ip := ap.Addr().Unmap()
	for _, p := range s.cfg.Allow {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// track registers or forgets a session. Registration fails once
// Shutdown has begun.
func (s *Server) track(conn net.Conn, live bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !live {
		delete(s.sessions, conn)
		return true
	}
	if s.closing {
		return false
	}
	s.sessions[conn] = struct{}{}
	return true
}

// ServeConn runs one session on conn and closes it.
func (s *Server) ServeConn(conn net.Conn) {
	if !s.track(conn, true) {
		conn.Close()
		return
	}
	s.metrics.AdminSessionOpened()
	remote := conn.RemoteAddr().String()
	log := s.logger.With("remote", remote)
	log.Info("admin session opened")
	defer func() {
		conn.Close()
		s.track(conn, false)
		s.metrics.AdminSessionClosed()
		log.Info("admin session closed")
	}()

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		burst := int(s.cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)
	}

	if _, err := io.WriteString(conn, Greeting+"\n"); err != nil {
		return
	}

	br := bufio.NewReaderSize(conn, MaxLineLength)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return
		}
		line, tooLong, err := readLine(br)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug("admin read ended", "error", err)
			}
			return
		}
		if tooLong {
			log.Warn("admin line too long")
			if _, err := io.WriteString(conn, ReplyLineTooLong+"\n"); err != nil {
				return
			}
			continue
		}

		cmd := ParseCommand(line)
		if cmd.Name == "" {
			continue
		}
		if limiter != nil && !limiter.Allow() {
			if _, err := io.WriteString(conn, ReplyRateLimited+"\n"); err != nil {
				return
			}
			continue
		}

		quit, err := s.handler.Execute(conn, cmd)
		if err != nil || quit {
			return
		}
	}
}

// readLine reads up to the next newline. A line longer than the reader's
// buffer is consumed entirely and reported as tooLong.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		switch {
		case err == nil:
			if tooLong {
				return "", true, nil
			}
			return string(chunk), false, nil
		case errors.Is(err, bufio.ErrBufferFull):
			tooLong = true
		case errors.Is(err, io.EOF) && len(chunk) > 0 && !tooLong:
			// Last line without a newline before the peer closed.
			return string(chunk), false, nil
		default:
			return "", false, err
		}
	}
}
