// Package query is a small keyed cache for API reads. Entries go stale after a
// fixed time or when invalidated, concurrent fetches of one key share a single
// call, and a stale entry can still be shown as placeholder data while its
// replacement loads.
package query

import (
	"container/list"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seckatie/sitesd/internal/metrics"
)

// Lookup results recorded in metrics.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultStale = "stale"
)

// Key identifies a cached read, e.g. Key{Scope: "sites", Page: 2}.
type Key struct {
	Scope string
	Page  int
}

func (k Key) String() string {
	return k.Scope + ":page=" + strconv.Itoa(k.Page)
}

// Config configures a Cache.
type Config struct {
	// StaleTime is how long a fetched value is trusted without refetching.
	StaleTime time.Duration
	// MaxEntries bounds the cache; least recently used entries go first.
	MaxEntries int
	// Metrics, if set, counts lookups by result.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		StaleTime:  30 * time.Second,
		MaxEntries: 256,
	}
}

// FetchFunc loads the value for a key.
type FetchFunc[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	key       string
	value     V
	fetchedAt time.Time
	stale     bool
	epoch     uint64 // epoch the value was fetched in
}

// State describes what the cache holds for a key.
type State[V any] struct {
	Value     V
	FetchedAt time.Time
	Fresh     bool
}

// Cache holds the last response per key. Values are only written by Fetch and
// Prefetch for the key they were fetched under.
type Cache[V any] struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	lru      *list.List // front = most recently used
	cfg      Config
	epoch    uint64 // bumped by Invalidate
	group    singleflight.Group
	now      func() time.Time
	inflight sync.WaitGroup
}

// New creates a cache.
func New[V any](cfg Config) *Cache[V] {
	def := DefaultConfig()
	if cfg.StaleTime <= 0 {
		cfg.StaleTime = def.StaleTime
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &Cache[V]{
		items: make(map[string]*list.Element),
		lru:   list.New(),
		cfg:   cfg,
		now:   time.Now,
	}
}

// Fetch returns the cached value for key if it is fresh, and otherwise calls
// fn. Callers asking for the same key while a call is running share its
// result. Cancelling ctx abandons the wait but not the shared call.
func (c *Cache[V]) Fetch(ctx context.Context, key string, fn FetchFunc[V]) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	return c.load(ctx, key, fn)
}

// Prefetch loads key in the background unless it is already fresh. It
// returns immediately.
func (c *Cache[V]) Prefetch(ctx context.Context, key string, fn FetchFunc[V]) {
	if c.isFresh(key) {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		_, _ = c.load(context.WithoutCancel(ctx), key, fn)
	}()
}

// Wait blocks until background prefetches have finished.
func (c *Cache[V]) Wait() {
	c.inflight.Wait()
}

// Invalidate marks every entry under prefix stale and returns how many were
// marked. Stale entries stay available as placeholders. Fetches already in
// flight store their results as stale.
func (c *Cache[V]) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.CacheInvalidations.WithLabelValues(prefix).Inc()
	}
	n := 0
	for k, elem := range c.items {
		if matches(k, prefix) {
			elem.Value.(*entry[V]).stale = true
			n++
		}
	}
	return n
}

// Peek reports what the cache holds for key without fetching.
func (c *Cache[V]) Peek(key string) (State[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return State[V]{}, false
	}
	e := elem.Value.(*entry[V])
	return State[V]{Value: e.value, FetchedAt: e.fetchedAt, Fresh: c.freshLocked(e)}, true
}

// Placeholder returns the most recently fetched value under prefix, fresh or
// not. It is what gets shown, dimmed, while another key under the same
// prefix loads.
func (c *Cache[V]) Placeholder(prefix string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *entry[V]
	for k, elem := range c.items {
		if !matches(k, prefix) {
			continue
		}
		e := elem.Value.(*entry[V])
		if best == nil || e.fetchedAt.After(best.fetchedAt) {
			best = e
		}
	}
	if best == nil {
		var zero V
		return zero, false
	}
	return best.value, true
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.record(ResultMiss)
		var zero V
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if !c.freshLocked(e) {
		c.record(ResultStale)
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(elem)
	c.record(ResultHit)
	return e.value, true
}

func (c *Cache[V]) isFresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	return ok && c.freshLocked(elem.Value.(*entry[V]))
}

func (c *Cache[V]) load(ctx context.Context, key string, fn FetchFunc[V]) (V, error) {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	// A flight started before an invalidation is not joined after it.
	flight := key + "#" + strconv.FormatUint(epoch, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		c.store(key, v, epoch)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, fmt.Errorf("fetch %s: %w", key, res.Err)
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *Cache[V]) store(key string, v V, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := epoch != c.epoch
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		if e.epoch > epoch {
			// A newer fetch has already landed.
			return
		}
		e.value = v
		e.fetchedAt = c.now()
		e.stale = stale
		e.epoch = epoch
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.cfg.MaxEntries {
		back := c.lru.Back()
		delete(c.items, back.Value.(*entry[V]).key)
		c.lru.Remove(back)
	}
	c.items[key] = c.lru.PushFront(&entry[V]{key: key, value: v, fetchedAt: c.now(), stale: stale, epoch: epoch})
}

func (c *Cache[V]) freshLocked(e *entry[V]) bool {
	return !e.stale && c.now().Sub(e.fetchedAt) < c.cfg.StaleTime
}

func (c *Cache[V]) record(result string) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.CacheRequests.WithLabelValues(result).Inc()
	}
}

// matches reports whether key falls under prefix. "sites" matches
// "sites:page=2" but not "sitesx:page=2".
func matches(key, prefix string) bool {
	return key == prefix || strings.HasPrefix(key, prefix+":")
}
