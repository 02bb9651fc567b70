package cache

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries is used when Config.MaxEntries is not positive.
const DefaultMaxEntries = 1000

// Failure is a remembered upstream failure.
type Failure struct {
	Status  int
	Message string
}

// Result is the outcome of a cache hit: exactly one of Value or Failure is
// meaningful.
type Result[V any] struct {
	Value   V
	Failure *Failure
}

// IsFailure reports whether the hit is a remembered failure.
func (r Result[V]) IsFailure() bool {
	return r.Failure != nil
}

// Config configures a Cache.
type Config struct {
	// MaxEntries bounds the number of entries (default: 1000).
	MaxEntries int

	// OnEvict is called, outside the cache lock, whenever an entry is evicted
	// to make room for a new key.
	OnEvict func(key Key)

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

type entry[V any] struct {
	key       Key
	result    Result[V]
	expiresAt time.Time
}

// Cache is a bounded LRU with a per-entry expiry.
type Cache[V any] struct {
	mu         sync.Mutex
	ll         *list.List
	items      map[Key]*list.Element
	maxEntries int
	onEvict    func(Key)
	now        func() time.Time

	flight singleflight.Group
}

// New creates a cache.
func New[V any](cfg Config) *Cache[V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Cache[V]{
		ll:         list.New(),
		items:      make(map[Key]*list.Element),
		maxEntries: cfg.MaxEntries,
		onEvict:    cfg.OnEvict,
		now:        cfg.Now,
	}
}

// Get returns the live entry for key. Expired entries are reported as a miss
// and left in place until they are overwritten or evicted.
func (c *Cache[V]) Get(key Key) (Result[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Result[V]{}, false
	}

	e := el.Value.(*entry[V])
	if !c.now().Before(e.expiresAt) {
		return Result[V]{}, false
	}

	c.ll.MoveToFront(el)
	return e.result, true
}

// Set stores a value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache[V]) Set(key Key, value V, ttl time.Duration) {
	c.put(key, Result[V]{Value: value}, ttl)
}

// SetFailure stores a failure under key for ttl. A non-positive ttl stores
// nothing.
func (c *Cache[V]) SetFailure(key Key, f Failure, ttl time.Duration) {
	c.put(key, Result[V]{Failure: &f}, ttl)
}

// Delete removes key.
func (c *Cache[V]) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Len returns the number of stored entries, including expired ones not yet
// overwritten or evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[Key]*list.Element)
}

func (c *Cache[V]) put(key Key, r Result[V], ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	var evicted []Key

	c.mu.Lock()
	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.result = r
		e.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		c.mu.Unlock()
		return
	}

	for c.ll.Len() >= c.maxEntries {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		e := oldest.Value.(*entry[V])
		c.ll.Remove(oldest)
		delete(c.items, e.key)
		evicted = append(evicted, e.key)
	}

	c.items[key] = c.ll.PushFront(&entry[V]{
		key:       key,
		result:    r,
		expiresAt: expiresAt,
	})
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, k := range evicted {
			c.onEvict(k)
		}
	}
}
