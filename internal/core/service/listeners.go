package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/infra/confloader"
	"github.com/yndnr/hostgate/internal/server/adminserver"
	"github.com/yndnr/hostgate/internal/server/httpserver"
	"github.com/yndnr/hostgate/internal/server/opsserver"
)

type listeners struct {
	plain  *httpserver.Server
	secure *httpserver.Server
	ops    *httpserver.Server
	admin  *adminserver.Server
}

// Start preloads the persistent units, binds the listeners and starts
// serving. Bind failures are returned unless crash prevention is on, in
// which case the listener is skipped and logged.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.snapshot().cfg
	if err := c.cache.Preload(ctx, cfg.Persistent); err != nil {
		if !cfg.PreventCrash {
			return err
		}
		c.logger.Error("preload failed", "error", err)
	}

	front := func(scheme domain.Scheme) *httpserver.Dispatcher {
		return httpserver.NewDispatcher(scheme, c, c.cache, c.logger, c.metrics)
	}

	c.listeners.plain = httpserver.New("plain", cfg.PlainAddr(),
		httpserver.Front(domain.Plain, front(domain.Plain), c.logger, c.metrics),
		httpserver.WithLogger(c.logger))
	if err := c.bind(c.listeners.plain.Listen, "plain"); err != nil {
		return err
	}

	if cfg.TLSEnabled() {
		if c.tls.Ready() {
			c.listeners.secure = httpserver.New("secure", cfg.SecureAddr(),
				httpserver.Front(domain.Secure, front(domain.Secure), c.logger, c.metrics),
				httpserver.WithTLS(c.tls.TLSConfig()),
				httpserver.WithLogger(c.logger))
			if err := c.bind(c.listeners.secure.Listen, "secure"); err != nil {
				return err
			}
		} else {
			c.logger.Warn("secure listener not started, no usable tls material")
		}
	}

	if cfg.Admin != nil {
		c.listeners.admin = adminserver.New(adminserver.Config{
			Addr:      cfg.Admin.Addr(),
			RateLimit: cfg.Admin.RateLimit,
			Allow:     cfg.Admin.Allow,
		}, c, c.logger, c.metrics)
		if err := c.bind(c.listeners.admin.Listen, "admin"); err != nil {
			return err
		}
	}

	if cfg.Ops != nil {
		c.listeners.ops = opsserver.New(cfg.Ops.Addr, c, c.metrics, c.logger)
		if err := c.bind(c.listeners.ops.Listen, "ops"); err != nil {
			return err
		}
	}

	c.serve("plain", c.listeners.plain.Addr() != nil, c.listeners.plain.Serve)
	if s := c.listeners.secure; s != nil && s.Addr() != nil {
		c.secureServing.Store(true)
		c.serve("secure", true, s.Serve)
	}
	if s := c.listeners.admin; s != nil {
		c.serve("admin", s.Addr() != nil, s.Serve)
	}
	if s := c.listeners.ops; s != nil {
		c.serve("ops", s.Addr() != nil, s.Serve)
	}

	if cfg.Watch {
		c.startWatching()
	}
	return nil
}

func (c *Controller) bind(listen func() error, name string) error {
	if err := listen(); err != nil {
		if !c.PreventCrash() {
			return fmt.Errorf("%s listener: %w", name, err)
		}
		c.logger.Error("listener not bound", "listener", name, "error", err)
	}
	return nil
}

func (c *Controller) serve(name string, bound bool, fn func() error) {
	if !bound {
		return
	}
	c.guard.Go(name+" listener", func() {
		if err := fn(); err != nil {
			err = fmt.Errorf("%s listener: %w", name, err)
			if c.PreventCrash() || c.fatal == nil {
				c.logger.Error("listener stopped", "error", err)
				return
			}
			c.fatal(err)
		}
	})
}

// startWatching reloads configuration and TLS material when their files
// change. Callers hold c.mu.
func (c *Controller) startWatching() {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(c.logger))
	if err != nil {
		c.logger.Error("config watch unavailable", "error", err)
	} else if err := w.Watch(c.store.Path()); err != nil {
		_ = w.Stop()
		c.logger.Error("config watch unavailable", "path", c.store.Path(), "error", err)
	} else {
		w.OnChange(func(string) {
			defer c.guard.Recover("config watch")
			_, _ = c.Reconfig()
		})
		w.StartAsync()
		c.watcher = w
	}

	if c.secureServing.Load() {
		if err := c.tls.Watch(); err != nil {
			c.logger.Error("tls watch unavailable", "error", err)
		} else {
			c.tlsWatching = true
		}
	}
}

// Shutdown stops the watchers and listeners. Admin sessions are closed
// first so no command runs against a half-stopped server.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	ls, w := c.listeners, c.watcher
	c.listeners, c.watcher = listeners{}, nil
	c.tlsWatching = false
	c.secureServing.Store(false)
	c.mu.Unlock()

	// Sessions may be waiting on c.mu, so stop them without holding it.
	if w != nil {
		_ = w.Stop()
	}
	c.tls.Stop()

	var errs []error
	if ls.admin != nil {
		errs = append(errs, ls.admin.Shutdown(ctx))
	}
	for _, s := range []*httpserver.Server{ls.ops, ls.secure, ls.plain} {
		if s != nil {
			errs = append(errs, s.Shutdown(ctx))
		}
	}
	return errors.Join(errs...)
}

// PlainAddr returns the bound plain address, or "" when not listening.
func (c *Controller) PlainAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return addrOf(c.listeners.plain)
}

// SecureAddr returns the bound secure address, or "" when not listening.
func (c *Controller) SecureAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return addrOf(c.listeners.secure)
}

// OpsAddr returns the bound ops address, or "" when not listening.
func (c *Controller) OpsAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return addrOf(c.listeners.ops)
}

// AdminAddr returns the bound console address, or "" when not listening.
func (c *Controller) AdminAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listeners.admin == nil {
		return ""
	}
	return netAddr(c.listeners.admin.Addr())
}

func addrOf(s *httpserver.Server) string {
	if s == nil {
		return ""
	}
	return netAddr(s.Addr())
}

func netAddr(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
