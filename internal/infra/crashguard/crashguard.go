// Package crashguard applies the server's crash policy to background
// goroutines: with crash prevention on, a panic is logged and the goroutine
// ends; with it off, the panic becomes a fatal error.
package crashguard

import (
	"fmt"
	"runtime/debug"

	"github.com/yndnr/hostgate/internal/telemetry/logger"
)

// Guard recovers panics in goroutines it starts.
type Guard struct {
	prevent func() bool
	fatal   func(error)
	logger  logger.Logger
}

// New creates a guard. prevent is consulted at panic time so the policy
// follows configuration reloads. fatal receives the panic as an error when
// prevention is off; a nil fatal re-panics.
func New(prevent func() bool, fatal func(error), l logger.Logger) *Guard {
	if prevent == nil {
		prevent = func() bool { return false }
	}
	return &Guard{prevent: prevent, fatal: fatal, logger: logger.OrDefault(l)}
}

// Go runs fn in a new goroutine under the guard.
func (g *Guard) Go(name string, fn func()) {
	go func() {
		defer g.Recover(name)
		fn()
	}()
}

// Recover must be deferred directly. It handles a panic in the calling
// goroutine.
func (g *Guard) Recover(name string) {
	r := recover()
	if r == nil {
		return
	}
	g.handle(name, r)
}

func (g *Guard) handle(name string, r any) {
	stack := string(debug.Stack())
	if g.prevent() {
		g.logger.Error("panic recovered", "goroutine", name, "panic", r, "stack", stack)
		return
	}
	err := fmt.Errorf("panic in %s: %v", name, r)
	g.logger.Error("fatal panic", "goroutine", name, "panic", r, "stack", stack)
	if g.fatal == nil {
		panic(r)
	}
	g.fatal(err)
}
