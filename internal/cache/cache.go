// Package cache provides a bounded LRU cache with time-to-live expiry.
//
// # Overview
//
// Entries are evicted lazily: an entry older than the TTL is dropped when it
// is read, and the least recently used entry is dropped when a new key is
// inserted into a full cache. Every operation runs under a single mutex, so
// the read-check-evict and evict-insert sequences are atomic with respect to
// metrics.
//
// Keys for query results are built with BuildKey from the query text and a
// hash of the context the query ran against.
package cache

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity is used when Config.Capacity is not positive.
const DefaultCapacity = 64

// Config configures a Cache.
type Config struct {
	// Name labels the cache in metrics and logs.
	Name string
	// Capacity is the maximum number of entries.
	Capacity int
	// TTL is how long an entry stays valid after insertion. Zero disables expiry.
	TTL time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Entry is a cached value with its bookkeeping timestamps.
type Entry[V any] struct {
	Value          V
	InsertedAt     time.Time
	LastAccessedAt time.Time
}

// Metrics is a snapshot of cache counters.
type Metrics struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Size        int    `json:"size"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

type item[V any] struct {
	key   string
	entry Entry[V]
}

// Cache is a generic LRU+TTL cache. The zero value is not usable; use New.
type Cache[V any] struct {
	name     string
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	order   *list.List // front is most recently used
	items   map[string]*list.Element
	metrics Metrics
}

// New creates a cache from cfg.
func New[V any](cfg Config) *Cache[V] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Cache[V]{
		name:     cfg.Name,
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		now:      cfg.Now,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Name returns the configured cache name.
func (c *Cache[V]) Name() string {
	return c.name
}

// Get returns a copy of the entry stored under key. An expired entry is
// removed and reported as a miss.
func (c *Cache[V]) Get(key string) (*Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.metrics.Misses++
		return nil, false
	}

	it := elem.Value.(*item[V])
	now := c.now()
	if c.expired(it, now) {
		c.remove(elem)
		c.metrics.Expirations++
		c.metrics.Misses++
		return nil, false
	}

	it.entry.LastAccessedAt = now
	c.order.MoveToFront(elem)
	c.metrics.Hits++

	entry := it.entry
	return &entry, true
}

// Set stores value under key. Inserting a new key into a full cache first
// evicts the least recently used entry.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[key]; ok {
		it := elem.Value.(*item[V])
		it.entry = Entry[V]{Value: value, InsertedAt: now, LastAccessedAt: now}
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
			c.metrics.Evictions++
		}
	}

	it := &item[V]{key: key, entry: Entry[V]{Value: value, InsertedAt: now, LastAccessedAt: now}}
	c.items[key] = c.order.PushFront(it)
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Len returns the number of stored entries, including expired entries not
// yet read.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes every entry. Metrics are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Metrics returns a snapshot of the counters.
func (c *Cache[V]) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metrics
	m.Size = c.order.Len()
	return m
}

// ResetMetrics zeroes the counters.
func (c *Cache[V]) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = Metrics{}
}

func (c *Cache[V]) expired(it *item[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(it.entry.InsertedAt) >= c.ttl
}

// remove must be called with mu held.
func (c *Cache[V]) remove(elem *list.Element) {
	it := c.order.Remove(elem).(*item[V])
	delete(c.items, it.key)
}

// BuildKey derives a cache key from query text and a context hash. The
// result is the hex sha256 of both inputs, separated so that moving bytes
// between them changes the key.
func BuildKey(query, contextHash string) string {
	sum := sha256.Sum256([]byte(query + "\x00" + contextHash))
	return fmt.Sprintf("%x", sum)
}
