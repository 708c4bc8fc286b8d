// Package memcache holds recently delivered variant bytes in memory so
// hot URLs skip the disk read. It is an overlay only: evicting an entry
// never loses materialized files or catalog records.
package memcache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/KalilDev/cached-sized-image/internal/sizing"
)

const (
	defaultMaxBytes = 100 * 1024 * 1024
	defaultTTL      = 5 * time.Minute
	cleanupInterval = 1 * time.Minute
)

// Entry is one cached variant.
type Entry struct {
	Data      []byte
	ExpiresAt time.Time
}

// Stats is a point-in-time snapshot for the stats endpoint.
type Stats struct {
	Hits        uint64    `json:"hits"`
	Misses      uint64    `json:"misses"`
	CurrentSize int64     `json:"current_size_bytes"`
	MaxSize     int64     `json:"max_size_bytes"`
	EntryCount  int       `json:"entry_count"`
	LastCleanup time.Time `json:"last_cleanup_time"`
}

// Cache is a TTL+size-capped byte cache keyed by URL and size bucket.
type Cache struct {
	entries sync.Map
	size    atomic.Int64
	hits    atomic.Uint64
	misses  atomic.Uint64
	max     int64
	ttl     time.Duration

	mu          sync.Mutex
	lastCleanup time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

// New creates a cache capped at maxBytes (0 means the default) and starts
// its cleanup goroutine. Stop with Close.
func New(maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	c := &Cache{
		max:  maxBytes,
		ttl:  defaultTTL,
		stop: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Key builds the cache key for a URL at a size bucket.
func Key(url string, size sizing.Size) string {
	return url + "#" + size.Name()
}

// Get returns the cached bytes for key, if present and fresh.
func (c *Cache) Get(key string) ([]byte, bool) {
	value, ok := c.entries.Load(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	entry := value.(*Entry)
	if time.Now().After(entry.ExpiresAt) {
		c.delete(key, entry)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.Data, true
}

// Add stores bytes under key, evicting older entries when the byte cap
// would be exceeded.
func (c *Cache) Add(key string, data []byte) {
	size := int64(len(data))
	if size == 0 || size > c.max {
		return
	}
	if c.size.Load()+size > c.max {
		c.evict(size)
	}
	entry := &Entry{Data: data, ExpiresAt: time.Now().Add(c.ttl)}
	if prev, loaded := c.entries.Swap(key, entry); loaded {
		c.size.Add(-int64(len(prev.(*Entry).Data)))
	}
	c.size.Add(size)
}

func (c *Cache) delete(key string, entry *Entry) {
	if _, loaded := c.entries.LoadAndDelete(key); loaded {
		c.size.Add(-int64(len(entry.Data)))
	}
}

func (c *Cache) evict(needed int64) {
	c.entries.Range(func(key, value interface{}) bool {
		entry := value.(*Entry)
		c.delete(key.(string), entry)
		return c.size.Load()+needed > c.max
	})
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	now := time.Now()
	c.entries.Range(func(key, value interface{}) bool {
		entry := value.(*Entry)
		if now.After(entry.ExpiresAt) {
			c.delete(key.(string), entry)
		}
		return true
	})
	c.mu.Lock()
	c.lastCleanup = now
	c.mu.Unlock()
}

// GetStats snapshots the cache counters.
func (c *Cache) GetStats() Stats {
	var count int
	c.entries.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	c.mu.Lock()
	last := c.lastCleanup
	c.mu.Unlock()
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		CurrentSize: c.size.Load(),
		MaxSize:     c.max,
		EntryCount:  count,
		LastCleanup: last,
	}
}
