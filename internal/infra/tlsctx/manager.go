// Package tlsctx holds the secure listener's certificate and swaps it in
// place when the key or certificate files change.
package tlsctx

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/infra/confine"
	"github.com/yndnr/hostgate/internal/infra/confloader"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

// Files names a key pair. Paths are relative to the server root.
type Files struct {
	Key  string
	Cert string
}

type material struct {
	files    Files
	keyPath  string
	certPath string
	cert     *tls.Certificate
	loadedAt time.Time
}

// Manager serves the current certificate to TLS handshakes. A failed
// refresh leaves the previous certificate in use.
type Manager struct {
	root     confine.Root
	logger   logger.Logger
	metrics  *metric.Registry
	debounce time.Duration

	current atomic.Pointer[material]

	// mu serialises refreshes and guards watcher.
	mu      sync.Mutex
	watcher *confloader.Watcher
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(r *metric.Registry) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithDebounce sets the quiet period before a file change triggers a
// refresh.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		m.debounce = d
	}
}

// NewManager creates a manager resolving files under root. It holds no
// certificate until Load succeeds.
func NewManager(root confine.Root, opts ...Option) *Manager {
	m := &Manager{
		root:     root,
		logger:   logger.Default(),
		debounce: confloader.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads files and makes them current.
func (m *Manager) Load(files Files) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(files)
}

// Refresh re-reads the current files.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.current.Load()
	if cur == nil {
		return domain.ErrTLSMaterialUnavailable.WithDetails("no key pair configured")
	}
	return m.loadLocked(cur.files)
}

func (m *Manager) loadLocked(files Files) error {
	next, err := m.read(files)
	if err != nil {
		m.metrics.RecordTLSReload("error")
		m.logger.Error("tls material load failed", "cert", files.Cert, "key", files.Key, "error", err)
		return err
	}
	m.current.Store(next)
	m.metrics.RecordTLSReload("ok")

	attrs := []any{"cert", next.certPath}
	if leaf := next.cert.Leaf; leaf != nil {
		attrs = append(attrs, "subject", leaf.Subject.CommonName, "not_after", leaf.NotAfter)
	}
	m.logger.Info("tls material loaded", attrs...)
	return nil
}

func (m *Manager) read(files Files) (*material, error) {
	if files.Key == "" || files.Cert == "" {
		return nil, domain.ErrTLSMaterialUnavailable.WithDetails("key and cert are both required")
	}
	keyPath, err := m.root.Resolve(files.Key)
	if err != nil {
		return nil, err
	}
	certPath, err := m.root.Resolve(files.Cert)
	if err != nil {
		return nil, err
	}

	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, domain.ErrTLSMaterialUnavailable.WithDetails(certPath).WithCause(err)
	}
	if pair.Leaf == nil && len(pair.Certificate) > 0 {
		leaf, err := x509.ParseCertificate(pair.Certificate[0])
		if err != nil {
			return nil, domain.ErrTLSMaterialUnavailable.WithDetails(certPath).WithCause(err)
		}
		pair.Leaf = leaf
	}

	return &material{
		files:    files,
		keyPath:  keyPath,
		certPath: certPath,
		cert:     &pair,
		loadedAt: time.Now(),
	}, nil
}

// Ready reports whether a certificate is loaded.
func (m *Manager) Ready() bool {
	return m.current.Load() != nil
}

// Files returns the files of the current certificate.
func (m *Manager) Files() (Files, bool) {
	cur := m.current.Load()
	if cur == nil {
		return Files{}, false
	}
	return cur.files, true
}

// Leaf returns the parsed current certificate, or nil.
func (m *Manager) Leaf() *x509.Certificate {
	cur := m.current.Load()
	if cur == nil {
		return nil
	}
	return cur.cert.Leaf
}

// GetCertificate implements tls.Config.GetCertificate. Handshakes already
// in progress keep the certificate they started with.
func (m *Manager) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cur := m.current.Load()
	if cur == nil {
		return nil, domain.ErrTLSMaterialUnavailable
	}
	return cur.cert, nil
}

// TLSConfig returns a server config that always asks the manager for the
// certificate.
func (m *Manager) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: m.GetCertificate,
	}
}

// Watch refreshes the certificate when its files change. It replaces any
// previous watch. Files must be loaded first.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.current.Load()
	if cur == nil {
		return domain.ErrTLSMaterialUnavailable.WithDetails("nothing to watch")
	}
	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}

	w, err := confloader.NewWatcher(
		confloader.WithWatcherLogger(m.logger),
		confloader.WithDebounce(m.debounce),
	)
	if err != nil {
		return fmt.Errorf("tlsctx: create watcher: %w", err)
	}
	for _, p := range []string{cur.certPath, cur.keyPath} {
		if err := w.Watch(p); err != nil {
			w.Stop()
			return fmt.Errorf("tlsctx: watch %s: %w", p, err)
		}
	}
	w.OnChange(func(path string) {
		m.logger.Info("tls material changed on disk", "file", path)
		_ = m.Refresh()
	})
	w.StartAsync()
	m.watcher = w
	return nil
}

// Stop stops watching. It is safe to call without Watch.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}
}
