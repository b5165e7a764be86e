package handler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
	"github.com/yndnr/hostgate/pkg/cmap"
)

// Entry is a cached handler for one (scheme, hostname).
type Entry struct {
	Key     domain.Key
	Target  domain.RouteTarget
	UnitID  string
	Handler Handler
	// Closure lists the unit and everything it transitively required.
	Closure  []string
	LoadedAt time.Time
}

func (e *Entry) dependsOnAny(ids map[string]struct{}) bool {
	for _, id := range e.Closure {
		if _, ok := ids[id]; ok {
			return true
		}
	}
	return false
}

type unitRecord struct {
	id      string
	value   any
	closure map[string]struct{}
}

// Cache loads handlers on first use and keeps them until evicted.
type Cache struct {
	source  Source
	logger  logger.Logger
	metrics *metric.Registry

	entries *cmap.Map[domain.Key, *Entry]
	flights singleflight.Group

	// mu guards units and serialises entry registration against eviction.
	mu    sync.Mutex
	units map[string]*unitRecord
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache creates a cache loading units from source.
func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:  source,
		logger:  logger.Default(),
		entries: cmap.New[domain.Key, *Entry](),
		units:   make(map[string]*unitRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns the handler cached for key, loading target when there
// is none or when the cached entry was built from a different target.
// Concurrent calls for the same key share one load. A failed load caches
// nothing.
func (c *Cache) GetOrLoad(ctx context.Context, key domain.Key, target domain.RouteTarget) (*Entry, error) {
	if e, ok := c.entries.Get(key); ok && e.Target == target {
		return e, nil
	}

	v, err, _ := c.flights.Do(key.String()+" "+string(target), func() (any, error) {
		if e, ok := c.entries.Get(key); ok && e.Target == target {
			return e, nil
		}
		// A load outlives the request that triggered it; other waiters
		// share the result.
		return c.load(context.WithoutCancel(ctx), key, target)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

func (c *Cache) load(ctx context.Context, key domain.Key, target domain.RouteTarget) (*Entry, error) {
	id, err := CanonicalID(string(target))
	if err != nil {
		c.metrics.RecordHandlerLoad("error")
		return nil, domain.ErrHandlerLoad.WithDetails(string(target)).WithCause(err)
	}

	rec, err := c.loadUnit(ctx, id, nil)
	if err != nil {
		c.metrics.RecordHandlerLoad("error")
		if !errors.Is(err, domain.ErrHandlerLoad) {
			err = domain.ErrHandlerLoad.WithDetails(id).WithCause(err)
		}
		return nil, err
	}

	h, ok := rec.value.(Handler)
	if !ok {
		c.metrics.RecordHandlerLoad("error")
		return nil, domain.ErrHandlerLoad.WithDetails(fmt.Sprintf("unit %s loaded a %T, not a handler", id, rec.value))
	}

	entry := &Entry{
		Key:      key,
		Target:   target,
		UnitID:   id,
		Handler:  h,
		Closure:  sortedIDs(rec.closure),
		LoadedAt: time.Now(),
	}

	c.mu.Lock()
	c.entries.Set(key, entry)
	c.mu.Unlock()

	c.metrics.RecordHandlerLoad("ok")
	c.logger.Info("handler loaded", "key", key.String(), "unit", id, "closure", len(entry.Closure))
	return entry, nil
}

// loadUnit returns the loaded record for id, loading its requirements
// first. stack holds the ids currently being loaded on this path.
func (c *Cache) loadUnit(ctx context.Context, id string, stack []string) (*unitRecord, error) {
	c.mu.Lock()
	rec := c.units[id]
	c.mu.Unlock()
	if rec != nil {
		return rec, nil
	}

	if slices.Contains(stack, id) {
		return nil, domain.ErrDependencyCycle.WithDetails(strings.Join(append(stack, id), " -> "))
	}
	stack = append(slices.Clone(stack), id)

	unit, err := c.source.Unit(id)
	if err != nil {
		return nil, err
	}
	if unit.Load == nil {
		return nil, domain.ErrHandlerLoad.WithDetails(fmt.Sprintf("unit %s has no loader", id))
	}

	deps := make(Deps, len(unit.Requires))
	closure := map[string]struct{}{id: {}}
	for _, req := range unit.Requires {
		rid, err := CanonicalID(req)
		if err != nil {
			return nil, domain.ErrHandlerLoad.WithDetails(fmt.Sprintf("unit %s requires %q", id, req)).WithCause(err)
		}
		dep, err := c.loadUnit(ctx, rid, stack)
		if err != nil {
			return nil, err
		}
		deps[rid] = dep.value
		for d := range dep.closure {
			closure[d] = struct{}{}
		}
	}

	value, err := invoke(ctx, unit.Load, deps)
	if err != nil {
		return nil, domain.ErrHandlerLoad.WithDetails(id).WithCause(err)
	}

	rec = &unitRecord{id: id, value: value, closure: closure}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent load of the same unit for another key may have won.
	if existing := c.units[id]; existing != nil {
		return existing, nil
	}
	c.units[id] = rec
	c.logger.Debug("unit loaded", "unit", id, "requires", len(unit.Requires))
	return rec, nil
}

func invoke(ctx context.Context, load LoadFunc, deps Deps) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during load: %v", r)
		}
	}()
	return load(ctx, deps)
}

// Evict removes the entry for key together with its dependency closure and
// everything depending on a removed unit. It returns the removed unit ids,
// or ErrNothingToEvict when key has no entry.
func (c *Cache) Evict(key domain.Key) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		return nil, domain.ErrNothingToEvict.WithDetails(key.String())
	}
	removed := c.removeLocked(e.Closure)
	c.entries.Delete(key)
	return removed, nil
}

// Uncache removes the unit id, the units it transitively required, and
// every unit and entry depending on any of them. It returns
// ErrNothingToEvict when nothing was loaded under that id.
func (c *Cache) Uncache(id string) ([]string, error) {
	cid, err := CanonicalID(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, loaded := c.units[cid]
	target := map[string]struct{}{cid: {}}
	dependent := false
	c.entries.Range(func(_ domain.Key, e *Entry) bool {
		dependent = e.dependsOnAny(target)
		return !dependent
	})
	if !loaded && !dependent {
		return nil, domain.ErrNothingToEvict.WithDetails(cid)
	}
	seeds := []string{cid}
	if loaded {
		seeds = sortedIDs(rec.closure)
	}
	return c.removeLocked(seeds), nil
}

// removeLocked drops the seed units, every unit whose closure contains a
// seed, and every entry depending on any dropped unit. Closures are
// transitive, so one pass finds all dependents.
func (c *Cache) removeLocked(seeds []string) []string {
	seedSet := make(map[string]struct{}, len(seeds))
	for _, id := range seeds {
		seedSet[id] = struct{}{}
	}

	doomed := make(map[string]struct{}, len(seeds))
	for id := range seedSet {
		doomed[id] = struct{}{}
	}
	for id, rec := range c.units {
		for dep := range rec.closure {
			if _, hit := seedSet[dep]; hit {
				doomed[id] = struct{}{}
				break
			}
		}
	}

	var removed []string
	for id := range doomed {
		if _, ok := c.units[id]; ok {
			delete(c.units, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	dropped := c.entries.DeleteFunc(func(_ domain.Key, e *Entry) bool {
		return e.dependsOnAny(doomed)
	})

	c.metrics.AddEvictions(len(removed))
	if len(removed) > 0 || dropped > 0 {
		c.logger.Info("handler cache evicted", "units", removed, "entries", dropped)
	}
	return removed
}

// Preload loads units ahead of the first request. Failures are collected
// and do not stop the remaining units.
func (c *Cache) Preload(ctx context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		cid, err := CanonicalID(id)
		if err == nil {
			_, err = c.loadUnit(ctx, cid, nil)
		}
		if err != nil {
			c.metrics.RecordHandlerLoad("error")
			c.logger.Error("preload failed", "unit", id, "error", err)
			errs = append(errs, fmt.Errorf("preload %s: %w", id, err))
			continue
		}
		c.metrics.RecordHandlerLoad("ok")
	}
	return errors.Join(errs...)
}

// Get returns the cached entry for key without loading.
func (c *Cache) Get(key domain.Key) (*Entry, bool) {
	return c.entries.Get(key)
}

// Entries returns the cached entries sorted by key.
func (c *Cache) Entries() []*Entry {
	entries := c.entries.Values()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.String() < entries[j].Key.String()
	})
	return entries
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Count()
}

// UnitCount returns the number of loaded units.
func (c *Cache) UnitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.units)
}

// Units returns the loaded unit ids, sorted.
func (c *Cache) Units() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.units))
	for id := range c.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
