package handler

import (
	"context"
	"errors"
	"plugin"
	"testing"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/infra/confine"
)

type fakeSymbols map[string]plugin.Symbol

func (f fakeSymbols) Lookup(name string) (plugin.Symbol, error) {
	s, ok := f[name]
	if !ok {
		return nil, errors.New("symbol " + name + " not found")
	}
	return s, nil
}

func newFakePluginSource(t *testing.T, syms fakeSymbols) (*PluginSource, *string) {
	t.Helper()
	root, err := confine.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot() error = %v", err)
	}
	var opened string
	src := NewPluginSource(root)
	src.open = func(path string) (symbolTable, error) {
		opened = path
		if syms == nil {
			return nil, errors.New("plugin: not an ELF file")
		}
		return syms, nil
	}
	return src, &opened
}

func TestPluginSource_Unit(t *testing.T) {
	requires := []string{"lib/db"}
	src, opened := newFakePluginSource(t, fakeSymbols{
		NewHandlerSymbol: func() Handler { return HandlerFunc(func(*Exchange) error { return nil }) },
		RequiresSymbol:   &requires,
	})

	u, err := src.Unit("sites/blog.so")
	if err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	if *opened == "" || *opened == "sites/blog.so" {
		t.Errorf("opened %q, want an absolute path under the root", *opened)
	}
	if len(u.Requires) != 1 || u.Requires[0] != "lib/db" {
		t.Errorf("Requires = %v", u.Requires)
	}
	v, err := u.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := v.(Handler); !ok {
		t.Errorf("Load() = %T, want Handler", v)
	}
}

func TestPluginSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		syms fakeSymbols
		id   string
		want error
	}{
		{"not a plugin id", fakeSymbols{}, "site.js", domain.ErrUnitNotFound},
		{"escapes root", fakeSymbols{}, "../../etc/evil.so", domain.ErrPathOutsideRoot},
		{"open fails", nil, "site.so", domain.ErrHandlerLoad},
		{"missing constructor", fakeSymbols{}, "site.so", domain.ErrHandlerLoad},
		{"wrong constructor type", fakeSymbols{NewHandlerSymbol: func() int { return 0 }}, "site.so", domain.ErrHandlerLoad},
		{"wrong requires type", fakeSymbols{
			NewHandlerSymbol: func() Handler { return nil },
			RequiresSymbol:   []string{"x"},
		}, "site.so", domain.ErrHandlerLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := newFakePluginSource(t, tt.syms)
			if _, err := src.Unit(tt.id); !errors.Is(err, tt.want) {
				t.Errorf("Unit(%s) error = %v, want %v", tt.id, err, tt.want)
			}
		})
	}
}
