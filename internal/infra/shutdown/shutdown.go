// Package shutdown coordinates process signals: SIGINT and SIGTERM stop the
// server, SIGHUP reloads it, and fatal errors raised from any goroutine stop
// it with a cause.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler runs shutdown and reload hooks.
type Handler struct {
	timeout time.Duration

	mu          sync.Mutex
	hooks       []func(context.Context) error
	reloadHooks []func()

	signals chan os.Signal
	fail    chan error
	done    chan struct{}
}

// NewHandler creates a handler whose shutdown hooks share a timeout.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		signals: make(chan os.Signal, 1),
		fail:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a shutdown hook. Hooks run in reverse order of
// registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// OnReload registers a hook run on SIGHUP.
func (h *Handler) OnReload(hook func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloadHooks = append(h.reloadHooks, hook)
}

// Fail requests shutdown because of err. Only the first cause is kept.
func (h *Handler) Fail(err error) {
	select {
	case h.fail <- err:
	default:
	}
}

// Wait blocks until a stop signal or Fail, then runs the shutdown hooks.
// It returns the Fail cause joined with any hook errors.
func (h *Handler) Wait() error {
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(h.signals)

	var cause error
wait:
	for {
		select {
		case sig := <-h.signals:
			if sig == syscall.SIGHUP {
				h.reload()
				continue
			}
			break wait
		case cause = <-h.fail:
			break wait
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := append([]func(context.Context) error(nil), h.hooks...)
	h.mu.Unlock()

	errs := []error{cause}
	for i := len(hooks) - 1; i >= 0; i-- {
		errs = append(errs, hooks[i](ctx))
	}

	close(h.done)
	return errors.Join(errs...)
}

func (h *Handler) reload() {
	h.mu.Lock()
	hooks := append([]func(){}, h.reloadHooks...)
	h.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// Done closes when the shutdown hooks have finished.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
