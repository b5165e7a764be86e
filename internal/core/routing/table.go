// Package routing resolves a request's hostname to a route target.
//
// A Table is derived from one configuration snapshot and never changes;
// a reload builds new tables. Hostnames are compared byte for byte, so
// "A.test" and "a.test" are different keys.
package routing

import (
	"sort"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/server/config"
)

// Entry is one configured route.
type Entry struct {
	Host   string             `json:"host"`
	Target domain.RouteTarget `json:"target"`
}

// Table maps hostnames to route targets for one scheme.
type Table struct {
	scheme domain.Scheme
	routes map[string]domain.RouteTarget
}

// NewTable copies routes into a table.
func NewTable(scheme domain.Scheme, routes map[string]domain.RouteTarget) *Table {
	t := &Table{scheme: scheme, routes: make(map[string]domain.RouteTarget, len(routes))}
	for host, target := range routes {
		t.routes[host] = target
	}
	return t
}

// Scheme returns the scheme the table serves.
func (t *Table) Scheme() domain.Scheme { return t.scheme }

// Resolve returns the target for host: the exact entry, else the
// "default" entry, else false.
func (t *Table) Resolve(host string) (domain.RouteTarget, bool) {
	if target, ok := t.routes[host]; ok {
		return target, true
	}
	target, ok := t.routes[domain.DefaultHost]
	return target, ok
}

// Has reports whether host is a configured key. "default" counts.
func (t *Table) Has(host string) bool {
	_, ok := t.routes[host]
	return ok
}

// Len returns the number of configured routes.
func (t *Table) Len() int { return len(t.routes) }

// Entries returns the routes sorted by hostname.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.routes))
	for host, target := range t.routes {
		entries = append(entries, Entry{Host: host, Target: target})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Host < entries[j].Host })
	return entries
}

// Tables holds the plain and secure tables of one configuration.
type Tables struct {
	Plain  *Table
	Secure *Table
}

// FromConfig derives both tables from cfg.
func FromConfig(cfg *config.Config) Tables {
	return Tables{
		Plain:  NewTable(domain.Plain, cfg.RoutesFor(domain.Plain)),
		Secure: NewTable(domain.Secure, cfg.RoutesFor(domain.Secure)),
	}
}

// For returns the table of scheme s.
func (ts Tables) For(s domain.Scheme) *Table {
	if s == domain.Secure {
		return ts.Secure
	}
	return ts.Plain
}

// Resolve resolves host on the table of scheme s.
func (ts Tables) Resolve(s domain.Scheme, host string) (domain.RouteTarget, bool) {
	return ts.For(s).Resolve(host)
}
