package handler

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/yndnr/hostgate/internal/core/domain"
)

// LoadFunc produces a unit's value. deps holds the values of the units
// listed in Requires, keyed by canonical id.
type LoadFunc func(ctx context.Context, deps Deps) (any, error)

// Unit is a loadable piece of code. Handler units load to a Handler;
// library units may load to anything.
type Unit struct {
	ID       string
	Requires []string
	Load     LoadFunc
}

// Deps maps canonical unit ids to loaded values.
type Deps map[string]any

// Get returns the value of a required unit.
func (d Deps) Get(id string) (any, bool) {
	cid, err := CanonicalID(id)
	if err != nil {
		return nil, false
	}
	v, ok := d[cid]
	return v, ok
}

// Static returns a unit whose value is v.
func Static(id string, v any, requires ...string) Unit {
	return Unit{
		ID:       id,
		Requires: requires,
		Load: func(context.Context, Deps) (any, error) {
			return v, nil
		},
	}
}

// CanonicalID normalises a route target into a unit id: "./a.js" and
// "a.js" name the same unit. Relative ids must not climb out of the root.
func CanonicalID(target string) (string, error) {
	t := strings.TrimSpace(target)
	if t == "" {
		return "", domain.ErrInvalidArgument.WithDetails("empty unit id")
	}
	c := path.Clean(t)
	if path.IsAbs(c) {
		return c, nil
	}
	if c == "." {
		return "", domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unit id %q names the root", target))
	}
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", domain.ErrPathOutsideRoot.WithDetails(target)
	}
	return c, nil
}

// Source resolves unit ids. Implementations return an error matching
// domain.ErrUnitNotFound for ids they do not know.
type Source interface {
	Unit(id string) (Unit, error)
}

// Sources tries each source in order.
type Sources []Source

// Unit returns the first unit found.
func (ss Sources) Unit(id string) (Unit, error) {
	for _, s := range ss {
		u, err := s.Unit(id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrUnitNotFound) {
			return Unit{}, err
		}
	}
	return Unit{}, domain.ErrUnitNotFound.WithDetails(id)
}
