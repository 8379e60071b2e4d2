// Package cache memoizes summarization results keyed by article content,
// so a story that survives a retry or arrives twice within a run does not
// spend model quota twice.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Summary holds the cached output of one summarization call.
type Summary struct {
	Text         string
	KeyTakeaways []string
	WhyItMatters string
}

type item struct {
	summary   Summary
	expiresAt time.Time
}

// Cache is a TTL cache safe for concurrent use. Expired entries are
// swept by a background janitor; Get treats them as absent either way.
type Cache struct {
	mu    sync.RWMutex
	items map[string]item
	stop  chan struct{}
	once  sync.Once
}

// New returns a running cache. Call Close when done to stop the janitor.
func New() *Cache {
	c := &Cache{
		items: make(map[string]item),
		stop:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Key derives the cache key from the inputs that determine a summary.
func Key(title, content string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Set stores a summary for ttl.
func (c *Cache) Set(key string, s Summary, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{summary: s, expiresAt: time.Now().Add(ttl)}
}

// Get returns the cached summary for key, if present and not expired.
func (c *Cache) Get(key string) (Summary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || time.Now().After(it.expiresAt) {
		return Summary{}, false
	}
	return it.summary, true
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. Safe to call more than once.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
		}
	}
}
