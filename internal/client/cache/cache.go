// Package cache implements the device's typed, namespaced cache: the only
// authority for what the app shows while offline.
//
// Every namespace holds one complete JSON document (collections as arrays,
// identifiers as bare strings). Write replaces the whole value; there is no
// partial merge. Writes to the same namespace are serialized, and a reader
// sees either the previous or the new value, never a mix. Operations on
// different namespaces are independent; callers must tolerate one succeeding
// while another fails.
//
// Values live in a kvstore.Repository. An optional Mirror keeps a copy of
// each value in memory so repeated reads skip storage.
package cache

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vaxtrack/internal/client/repositories/kvstore"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/metrics"
	json "github.com/goccy/go-json"
)

type Cache struct {
	repo    kvstore.Repository
	mirror  Mirror
	log     logging.Logger
	metrics metrics.Provider
	locks   map[Namespace]*sync.RWMutex

	hooksMu sync.Mutex
	onClear []func(Namespace)
}

type Option func(*Cache)

func WithMirror(m Mirror) Option {
	return func(c *Cache) { c.mirror = m }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Cache) { c.log = l }
}

func WithMetrics(m metrics.Provider) Option {
	return func(c *Cache) { c.metrics = m }
}

func New(repo kvstore.Repository, opts ...Option) *Cache {
	c := &Cache{
		repo:    repo,
		mirror:  noopMirror{},
		log:     logging.Nop(),
		metrics: metrics.Noop(),
		locks:   make(map[Namespace]*sync.RWMutex, len(Namespaces)),
	}
	for _, ns := range Namespaces {
		c.locks[ns] = &sync.RWMutex{}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) lock(ns Namespace) *sync.RWMutex {
	ns.mustBeKnown()
	return c.locks[ns]
}

// Write serializes value and stores it under ns, replacing any previous
// value.
func (c *Cache) Write(ctx context.Context, ns Namespace, value any) error {
	mu := c.lock(ns)
	mu.Lock()
	defer mu.Unlock()
	return c.write(ctx, ns, value)
}

func (c *Cache) write(ctx context.Context, ns Namespace, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return c.writeFailed(ctx, ns, err)
	}
	if err := c.repo.Set(ctx, string(ns), b); err != nil {
		c.mirror.Del(string(ns))
		return c.writeFailed(ctx, ns, err)
	}
	c.mirror.Set(string(ns), b)
	return nil
}

func (c *Cache) writeFailed(ctx context.Context, ns Namespace, err error) error {
	c.metrics.IncCacheWriteFailures(string(ns))
	c.log.Warn(ctx, "cache write failed", "namespace", string(ns), "error", err)
	return &Error{Op: opWrite, Namespace: ns, Err: err}
}

// Read decodes the value stored under ns into dst. It reports false when
// nothing is stored. A storage or decoding failure is returned as an *Error
// matching ErrCacheRead; callers treat it like an empty namespace.
func (c *Cache) Read(ctx context.Context, ns Namespace, dst any) (bool, error) {
	mu := c.lock(ns)
	mu.RLock()
	defer mu.RUnlock()
	return c.read(ctx, ns, dst)
}

func (c *Cache) read(ctx context.Context, ns Namespace, dst any) (bool, error) {
	b, ok := c.mirror.Get(string(ns))
	if ok {
		c.metrics.IncMirrorHits()
	} else {
		c.metrics.IncMirrorMisses()
		var err error
		b, err = c.repo.Get(ctx, string(ns))
		if err != nil {
			return false, &Error{Op: opRead, Namespace: ns, Err: err}
		}
		if b == nil {
			return false, nil
		}
		c.mirror.Set(string(ns), b)
	}

	if err := json.Unmarshal(b, dst); err != nil {
		return false, &Error{Op: opRead, Namespace: ns, Err: err}
	}
	return true, nil
}

// Has reports whether anything is stored under ns.
func (c *Cache) Has(ctx context.Context, ns Namespace) (bool, error) {
	var raw json.RawMessage
	return c.Read(ctx, ns, &raw)
}

// OnClear registers fn to run for every namespace removed by Clear or
// ClearAll. fn runs after the removal succeeded, with no cache locks held.
func (c *Cache) OnClear(fn func(Namespace)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.onClear = append(c.onClear, fn)
}

func (c *Cache) cleared(namespaces ...Namespace) {
	c.hooksMu.Lock()
	hooks := append([]func(Namespace){}, c.onClear...)
	c.hooksMu.Unlock()

	for _, ns := range namespaces {
		for _, fn := range hooks {
			fn(ns)
		}
	}
}

// Clear removes the value stored under ns.
func (c *Cache) Clear(ctx context.Context, ns Namespace) error {
	if err := c.clear(ctx, ns); err != nil {
		return err
	}
	c.cleared(ns)
	return nil
}

func (c *Cache) clear(ctx context.Context, ns Namespace) error {
	mu := c.lock(ns)
	mu.Lock()
	defer mu.Unlock()

	c.mirror.Del(string(ns))
	if err := c.repo.Delete(ctx, string(ns)); err != nil {
		return &Error{Op: opClear, Namespace: ns, Err: err}
	}
	return nil
}

// ClearAll removes the given namespaces, or every namespace when none are
// given, in one storage transaction.
func (c *Cache) ClearAll(ctx context.Context, namespaces ...Namespace) error {
	if len(namespaces) == 0 {
		namespaces = Namespaces
	}
	for _, ns := range namespaces {
		ns.mustBeKnown()
	}
	if err := c.clearAll(ctx, namespaces); err != nil {
		return err
	}
	c.cleared(namespaces...)
	return nil
}

func (c *Cache) clearAll(ctx context.Context, namespaces []Namespace) error {
	// lock in the fixed Namespaces order to keep concurrent ClearAll calls
	// from deadlocking
	keys := make([]string, 0, len(namespaces))
	for _, ns := range Namespaces {
		if !contains(namespaces, ns) {
			continue
		}
		mu := c.locks[ns]
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, string(ns))
	}

	for _, k := range keys {
		c.mirror.Del(k)
	}
	if err := c.repo.DeleteMany(ctx, keys); err != nil {
		return &Error{Op: opClear, Namespace: Namespace("*"), Err: err}
	}
	return nil
}

func contains(list []Namespace, ns Namespace) bool {
	for _, n := range list {
		if n == ns {
			return true
		}
	}
	return false
}

// Load reads ns into a fresh T. A missing value yields the zero T and false.
func Load[T any](ctx context.Context, c *Cache, ns Namespace) (T, bool, error) {
	var v T
	ok, err := c.Read(ctx, ns, &v)
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// Modify performs a read-modify-write of ns while holding the namespace's
// write lock, so concurrent incremental updates do not lose each other's
// changes. fn receives the current value (zero T when absent); returning an
// error aborts without writing. An unreadable value is left in place and its
// ErrCacheRead error returned without calling fn: only a full Write replaces
// it.
func Modify[T any](ctx context.Context, c *Cache, ns Namespace, fn func(v *T) error) error {
	mu := c.lock(ns)
	mu.Lock()
	defer mu.Unlock()

	var v T
	if _, err := c.read(ctx, ns, &v); err != nil {
		c.log.Warn(ctx, "cache read failed, value left untouched", "namespace", string(ns), "error", err)
		return err
	}
	if err := fn(&v); err != nil {
		return err
	}
	return c.write(ctx, ns, v)
}
