package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/maktabhq/maktab/core"
)

type (
	cacheEntry struct {
		value interface{}
		stale bool
	}

	// keyState survives entry eviction: the generation counts invalidations of
	// a key so a fetch can detect ones that raced it.
	keyState struct {
		gen uint64
	}

	// QueryCache holds query results keyed by an opaque string, with a
	// table-to-key dependency registry. Change events on a table mark every
	// dependent entry stale; the next Get refetches. Invalidation is
	// push-driven but data is always pulled — the cache never stores event
	// payloads.
	QueryCache struct {
		logger core.Logger

		mutex   sync.Mutex
		entries map[string]*cacheEntry
		states  map[string]*keyState
		deps    map[string]map[string]struct{} // table -> dependent keys
		sub     *Subscription
		done    chan struct{}
	}
)

func NewQueryCache(logger core.Logger) *QueryCache {
	return &QueryCache{
		logger:  logger,
		entries: make(map[string]*cacheEntry),
		states:  make(map[string]*keyState),
		deps:    make(map[string]map[string]struct{}),
	}
}

// RegisterDependency declares that the given cache keys depend on rows of table.
func (c *QueryCache) RegisterDependency(table string, keys ...string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	keySet, ok := c.deps[table]
	if !ok {
		keySet = make(map[string]struct{})
		c.deps[table] = keySet
	}
	for _, key := range keys {
		keySet[key] = struct{}{}
	}
}

// Get returns the cached value for key, fetching it first if the entry is
// missing or stale. A fetch error leaves the entry untouched and is returned
// to the caller; the stale value is never served as fresh.
func (c *QueryCache) Get(ctx context.Context, key string, fetch func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	c.mutex.Lock()
	entry, ok := c.entries[key]
	if ok && !entry.stale {
		val := entry.value
		c.mutex.Unlock()
		return val, nil
	}
	gen := c.state(key).gen
	c.mutex.Unlock()

	val, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	// an invalidation that raced the fetch means val may predate the change;
	// storing it stale makes the next read refetch instead of serving the
	// pre-change snapshot as fresh
	c.entries[key] = &cacheEntry{value: val, stale: c.state(key).gen != gen}
	c.mutex.Unlock()
	return val, nil
}

// state returns the invalidation state of key, creating it if needed. Callers
// must hold the mutex.
func (c *QueryCache) state(key string) *keyState {
	st, ok := c.states[key]
	if !ok {
		st = &keyState{}
		c.states[key] = st
	}
	return st
}

// Invalidate marks every cache entry dependent on table as stale.
func (c *QueryCache) Invalidate(table string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key := range c.deps[table] {
		c.state(key).gen++
		if entry, ok := c.entries[key]; ok {
			entry.stale = true
		}
	}
}

// InvalidateKey marks a single entry stale.
func (c *QueryCache) InvalidateKey(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.state(key).gen++
	if entry, ok := c.entries[key]; ok {
		entry.stale = true
	}
}

// Watch subscribes the cache to a hub and invalidates on every change event.
// A second Watch call replaces the previous subscription so handlers never
// stack. Stop with Unwatch.
func (c *QueryCache) Watch(hub *Hub) {
	c.Unwatch()

	sub := hub.Subscribe(64)
	done := make(chan struct{})

	c.mutex.Lock()
	c.sub = sub
	c.done = done
	c.mutex.Unlock()

	go func() {
		defer close(done)
		for evt := range sub.C {
			c.logger.Debug(fmt.Sprintf("change event: %s %s", evt.Type, evt.Table))
			c.Invalidate(evt.Table)
		}
	}()
}

// Unwatch cancels the current hub subscription, if any, and waits for the
// consumer to drain.
func (c *QueryCache) Unwatch() {
	c.mutex.Lock()
	sub, done := c.sub, c.done
	c.sub, c.done = nil, nil
	c.mutex.Unlock()

	if sub == nil {
		return
	}
	sub.Close()
	<-done
}
