package handler

import (
	"context"
	"fmt"
	"plugin"
	"strings"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/infra/confine"
)

// Plugin symbols looked up in a shared object.
const (
	// PluginExt marks unit ids served by PluginSource.
	PluginExt = ".so"
	// NewHandlerSymbol must have type func() Handler.
	NewHandlerSymbol = "NewHandler"
	// RequiresSymbol, when present, must be a []string variable.
	RequiresSymbol = "Requires"
)

type symbolTable interface {
	Lookup(name string) (plugin.Symbol, error)
}

// PluginSource serves unit ids ending in ".so" from Go plugins under the
// server root. The runtime never unloads a plugin, so reloading an evicted
// plugin unit builds a fresh handler from the same code; deploy new code
// under a new file name.
type PluginSource struct {
	root confine.Root
	open func(path string) (symbolTable, error)
}

// NewPluginSource creates a source rooted at root.
func NewPluginSource(root confine.Root) *PluginSource {
	return &PluginSource{
		root: root,
		open: func(path string) (symbolTable, error) {
			return plugin.Open(path)
		},
	}
}

// Unit implements Source.
func (p *PluginSource) Unit(id string) (Unit, error) {
	if !strings.HasSuffix(id, PluginExt) {
		return Unit{}, domain.ErrUnitNotFound.WithDetails(id)
	}
	path, err := p.root.Resolve(id)
	if err != nil {
		return Unit{}, err
	}
	syms, err := p.open(path)
	if err != nil {
		return Unit{}, domain.ErrHandlerLoad.WithDetails(path).WithCause(err)
	}

	sym, err := syms.Lookup(NewHandlerSymbol)
	if err != nil {
		return Unit{}, domain.ErrHandlerLoad.WithDetails(fmt.Sprintf("%s: missing %s", path, NewHandlerSymbol)).WithCause(err)
	}
	newHandler, ok := sym.(func() Handler)
	if !ok {
		return Unit{}, domain.ErrHandlerLoad.WithDetails(fmt.Sprintf("%s: %s has type %T", path, NewHandlerSymbol, sym))
	}

	var requires []string
	if sym, err := syms.Lookup(RequiresSymbol); err == nil {
		reqs, ok := sym.(*[]string)
		if !ok {
			return Unit{}, domain.ErrHandlerLoad.WithDetails(fmt.Sprintf("%s: %s has type %T", path, RequiresSymbol, sym))
		}
		requires = append(requires, (*reqs)...)
	}

	return Unit{
		ID:       id,
		Requires: requires,
		Load: func(context.Context, Deps) (any, error) {
			return newHandler(), nil
		},
	}, nil
}
