package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/core/handler"
	"github.com/yndnr/hostgate/internal/core/routing"
	"github.com/yndnr/hostgate/internal/infra/confine"
	"github.com/yndnr/hostgate/internal/infra/confloader"
	"github.com/yndnr/hostgate/internal/infra/crashguard"
	"github.com/yndnr/hostgate/internal/infra/proctitle"
	"github.com/yndnr/hostgate/internal/infra/tlsctx"
	"github.com/yndnr/hostgate/internal/routes"
	"github.com/yndnr/hostgate/internal/server/config"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

// Options configures a Controller.
type Options struct {
	// ConfigPath is the configuration file. Relative paths are taken from
	// Root.
	ConfigPath string
	// Root confines TLS material and plugin units.
	Root string
	// EnvPrefix overlays environment variables; "" disables the overlay.
	EnvPrefix string

	Logger  logger.Logger
	Metrics *metric.Registry
	// Registry holds in-process units. The built-in routes are added to it.
	Registry *handler.Registry
	// Fatal is told about errors that must stop the process when crash
	// prevention is off.
	Fatal func(error)
}

type snapshot struct {
	cfg    *config.Config
	tables routing.Tables
}

// Controller owns the live server state.
type Controller struct {
	root    confine.Root
	logger  logger.Logger
	metrics *metric.Registry
	fatal   func(error)

	store    *config.Store
	registry *handler.Registry
	cache    *handler.Cache
	tls      *tlsctx.Manager
	guard    *crashguard.Guard

	state atomic.Pointer[snapshot]

	// mu serialises reconfiguration and the listener lifecycle.
	mu            sync.Mutex
	listeners     listeners
	secureServing atomic.Bool
	tlsWatching   bool
	watcher       *confloader.Watcher
}

// New loads the configuration and prepares the controller. A missing or
// malformed configuration file is not an error: the controller starts from
// the defaults, as Reconfig would.
func New(opts Options) (*Controller, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	root, err := confine.NewRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	if opts.ConfigPath == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("no configuration path")
	}
	path, err := root.Resolve(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		root:    root,
		logger:  logger.OrDefault(opts.Logger),
		metrics: opts.Metrics,
		fatal:   opts.Fatal,
	}
	c.store = config.NewStore(path,
		config.WithStoreLogger(c.logger),
		config.WithEnvPrefix(opts.EnvPrefix),
	)

	c.registry = opts.Registry
	if c.registry == nil {
		c.registry = handler.NewRegistry()
	}
	if err := routes.Register(c.registry, c.title); err != nil {
		return nil, err
	}
	c.cache = handler.NewCache(
		handler.Sources{c.registry, handler.NewPluginSource(root)},
		handler.WithLogger(c.logger),
		handler.WithMetrics(c.metrics),
	)
	if err := c.metrics.Register(metric.NewCollector(c.cache)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
	}
	c.tls = tlsctx.NewManager(root, tlsctx.WithLogger(c.logger), tlsctx.WithMetrics(c.metrics))
	c.guard = crashguard.New(c.PreventCrash, c.fatal, c.logger)

	cfg, result, err := c.store.Load()
	c.metrics.RecordConfigReload(result.String())
	if err != nil {
		c.logger.Warn("configuration not fully applied", "result", result.String(), "error", err)
	}
	c.install(cfg)
	c.logger.Info("configuration loaded", append([]any{"path", path, "result", result.String()}, config.Summary(cfg)...)...)

	if cfg.TLSEnabled() {
		if err := c.tls.Load(tlsFiles(cfg)); err != nil {
			c.logger.Error("tls material unavailable, secure listener will not start", "error", err)
		}
	}
	return c, nil
}

// install swaps in cfg and its routing tables and applies the settings
// that take effect without a restart.
func (c *Controller) install(cfg *config.Config) {
	c.state.Store(&snapshot{cfg: cfg, tables: routing.FromConfig(cfg)})
	logger.SetLevel(cfg.Log.Level)
	if err := proctitle.Set(cfg.Title); err != nil {
		c.logger.Debug("process title not set", "title", cfg.Title, "error", err)
	}
}

func (c *Controller) snapshot() *snapshot {
	return c.state.Load()
}

// Config returns the live configuration.
func (c *Controller) Config() *config.Config {
	return c.snapshot().cfg
}

func (c *Controller) title() string {
	return c.snapshot().cfg.Title
}

// PreventCrash reports the current crash policy.
func (c *Controller) PreventCrash() bool {
	return c.snapshot().cfg.PreventCrash
}

// Cache returns the handler cache.
func (c *Controller) Cache() *handler.Cache {
	return c.cache
}

// Resolve returns the route target for host.
func (c *Controller) Resolve(scheme domain.Scheme, host string) (domain.RouteTarget, bool) {
	return c.snapshot().tables.Resolve(scheme, host)
}

// Route resolves host and returns its handler, loading it when needed.
func (c *Controller) Route(ctx context.Context, scheme domain.Scheme, host string) (*handler.Entry, error) {
	target, ok := c.Resolve(scheme, host)
	if !ok {
		return nil, domain.ErrUnknownHost.WithDetails(scheme.String() + "://" + host)
	}
	return c.cache.GetOrLoad(ctx, domain.Key{Scheme: scheme, Host: host}, target)
}

// Routes lists the configured routes for scheme.
func (c *Controller) Routes(scheme domain.Scheme) []routing.Entry {
	t := c.snapshot().tables.For(scheme)
	if t == nil {
		return nil
	}
	return t.Entries()
}

// CachedEntries lists the cached handlers.
func (c *Controller) CachedEntries() []*handler.Entry {
	return c.cache.Entries()
}

// TLSReady reports whether the secure listener is serving.
func (c *Controller) TLSReady() bool {
	return c.secureServing.Load() && c.tls.Ready()
}

// Reconfig reloads the configuration file. A rejected file leaves the
// running configuration in place. Listener addresses are bound once, so
// changes to them are logged and take effect after a restart.
func (c *Controller) Reconfig() (config.LoadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.snapshot().cfg
	cfg, result, err := c.store.Load()
	c.metrics.RecordConfigReload(result.String())
	if result == config.NotApplied {
		c.logger.Warn("configuration rejected, keeping previous", "error", err)
		return result, err
	}
	if err != nil {
		c.logger.Warn("configuration applied with errors", "result", result.String(), "error", err)
	}

	c.install(cfg)
	c.warnRestartRequired(prev, cfg)
	c.logger.Info("configuration reloaded", append([]any{"result", result.String()}, config.Summary(cfg)...)...)
	return result, err
}

func (c *Controller) warnRestartRequired(prev, next *config.Config) {
	changed := func(what, from, to string) {
		if from != to {
			c.logger.Warn("listener change needs a restart", "listener", what, "running", from, "configured", to)
		}
	}
	changed("plain", prev.PlainAddr(), next.PlainAddr())
	changed("secure", prev.SecureAddr(), next.SecureAddr())
	changed("admin", adminAddr(prev), adminAddr(next))
	changed("ops", opsAddr(prev), opsAddr(next))
	if prev.Watch != next.Watch {
		c.logger.Warn("watch setting change needs a restart", "running", prev.Watch, "configured", next.Watch)
	}
}

// Reroute drops the cached handler for host together with the unit its
// route names, so the next request loads fresh code. It returns
// ErrUnknownHost when host has no route of its own for scheme.
func (c *Controller) Reroute(scheme domain.Scheme, host string) error {
	t := c.snapshot().tables.For(scheme)
	if t == nil || !t.Has(host) {
		return domain.ErrUnknownHost.WithDetails(scheme.String() + "://" + host)
	}
	target, _ := t.Resolve(host)

	removed, err := c.cache.Evict(domain.Key{Scheme: scheme, Host: host})
	if err != nil && !errors.Is(err, domain.ErrNothingToEvict) {
		return err
	}
	more, err := c.cache.Uncache(string(target))
	if err != nil && !errors.Is(err, domain.ErrNothingToEvict) && !errors.Is(err, domain.ErrPathOutsideRoot) {
		return err
	}
	c.logger.Info("rerouted", "scheme", scheme.String(), "host", host, "target", string(target), "removed", len(removed)+len(more))
	return nil
}

// Uncache drops unit id and everything depending on it.
func (c *Controller) Uncache(id string) ([]string, error) {
	return c.cache.Uncache(id)
}

// RefreshTLS reloads the key pair named by the live configuration. The
// running certificate stays in use when the reload fails.
func (c *Controller) RefreshTLS() error {
	cfg := c.snapshot().cfg
	if !cfg.TLSEnabled() {
		return domain.ErrTLSDisabled
	}
	if !c.secureServing.Load() {
		return domain.ErrTLSNotServing
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	before, _ := c.tls.Files()
	if err := c.tls.Load(tlsFiles(cfg)); err != nil {
		return err
	}
	if after, _ := c.tls.Files(); after != before && c.tlsWatching {
		if err := c.tls.Watch(); err != nil {
			c.logger.Warn("tls watch not moved to new files", "error", err)
		}
	}
	return nil
}

// Preload loads units ahead of the first request.
func (c *Controller) Preload(ctx context.Context, ids []string) error {
	return c.cache.Preload(ctx, ids)
}

func tlsFiles(cfg *config.Config) tlsctx.Files {
	return tlsctx.Files{Key: cfg.Security.TLS.Key, Cert: cfg.Security.TLS.Cert}
}

func adminAddr(cfg *config.Config) string {
	if cfg.Admin == nil {
		return ""
	}
	return cfg.Admin.Addr()
}

func opsAddr(cfg *config.Config) string {
	if cfg.Ops == nil {
		return ""
	}
	return cfg.Ops.Addr
}
