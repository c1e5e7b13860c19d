package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// Cache is a fixed-capacity LRU map whose entries expire after a ttl.
// It is safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]*list.Element
	order    *list.List // front is most recently used
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// Option customises a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a cache with the provided capacity and ttl.
func New[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      o.now,
	}
}

// Get returns the value stored under key if it has not expired and marks it
// as recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if !now.Before(e.expiresAt) {
		c.remove(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Contains reports whether key holds a live entry without touching recency.
func (c *Cache[K, V]) Contains(key K) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	return now.Before(el.Value.(*entry[K, V]).expiresAt)
}

// Set stores value under key with a fresh ttl.
func (c *Cache[K, V]) Set(key K, value V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
	} else {
		c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: now.Add(c.ttl)})
	}
	c.compact(now)
}

// Delete drops key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// compact evicts least recently used entries over capacity and expired
// entries sitting at the cold end of the list.
func (c *Cache[K, V]) compact(now time.Time) {
	for c.order.Len() > 0 {
		oldest := c.order.Back()
		if c.order.Len() <= c.capacity && now.Before(oldest.Value.(*entry[K, V]).expiresAt) {
			return
		}
		c.remove(oldest)
	}
}

func (c *Cache[K, V]) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}
