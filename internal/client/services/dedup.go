package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
)

// DedupTracker remembers which notifications this device has surfaced. The
// set lives in the processedNotifications namespace and survives restarts.
// Clearing that namespace through the cache also forgets the in-memory copy.
type DedupTracker struct {
	cache *cache.Cache
	log   logging.Logger

	mu     sync.Mutex
	loaded bool
	seen   map[string]struct{}
}

func NewDedupTracker(c *cache.Cache, log logging.Logger) *DedupTracker {
	d := &DedupTracker{cache: c, log: log}
	c.OnClear(func(ns cache.Namespace) {
		if ns == cache.ProcessedNotifications {
			d.Reset()
		}
	})
	return d
}

// ShouldDeliver reports whether id has not been delivered yet. It does not
// mark anything.
func (d *DedupTracker) ShouldDeliver(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.load(ctx)
	_, done := d.seen[id]
	return !done
}

// MarkDelivered adds id to the durable set. The in-memory set is updated
// even when the write fails, so this session still suppresses repeats. An
// unreadable stored set is replaced by the in-memory one.
func (d *DedupTracker) MarkDelivered(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.load(ctx)
	d.seen[id] = struct{}{}

	err := cache.Modify(ctx, d.cache, cache.ProcessedNotifications, func(ids *[]string) error {
		*ids = d.merged(*ids)
		return nil
	})
	if errors.Is(err, cache.ErrCacheRead) {
		d.log.Warn(ctx, "replacing unreadable processed notifications", "error", err)
		return d.cache.Write(ctx, cache.ProcessedNotifications, d.merged(nil))
	}
	return err
}

func (d *DedupTracker) merged(stored []string) []string {
	set := make(map[string]struct{}, len(stored)+len(d.seen))
	for _, v := range stored {
		set[v] = struct{}{}
	}
	for v := range d.seen {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Reset forgets the in-memory copy; the next call reloads from the cache.
func (d *DedupTracker) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
	d.seen = nil
}

func (d *DedupTracker) load(ctx context.Context) {
	if d.loaded {
		return
	}
	if d.seen == nil {
		d.seen = map[string]struct{}{}
	}

	ids, _, err := cache.Load[[]string](ctx, d.cache, cache.ProcessedNotifications)
	if err != nil {
		// retried on the next call
		d.log.Warn(ctx, "processed notifications unreadable", "error", err)
		return
	}
	for _, id := range ids {
		d.seen[id] = struct{}{}
	}
	d.loaded = true
}
