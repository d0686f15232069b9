// ABOUTME: Bounded TTL cache of recently seen update keys
// ABOUTME: Frontends use it to acknowledge and drop platform retries of the same update

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// Defaults for frontends that do not configure the cache.
const (
	DefaultTTL     = 10 * time.Minute
	DefaultMaxSize = 10000
)

// Key builds the cache key for an update ID on a frontend.
func Key(frontend, id string) string {
	return "update:" + frontend + ":" + id
}

type entry struct {
	seenAt time.Time
	elem   *list.Element
}

// Cache remembers keys for ttl, holding at most maxSize of them.
// The oldest key is evicted first when full.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its expiry loop. Non-positive arguments
// fall back to DefaultTTL and DefaultMaxSize.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.expireLoop(expireInterval(ttl))
	return c
}

func expireInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

// Seen reports whether key was marked within the TTL. A new or expired key
// is marked as a side effect, so exactly one of several concurrent callers
// with the same key gets false.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		if now.Sub(e.seenAt) < c.ttl {
			return true
		}
		e.seenAt = now
		c.order.MoveToBack(e.elem)
		return false
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &entry{seenAt: now, elem: c.order.PushBack(key)}
	return false
}

// contains reports whether key is marked and unexpired without marking it.
func (c *Cache) contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && c.now().Sub(e.seenAt) < c.ttl
}

// Len returns the number of keys held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

func (c *Cache) expireLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.done:
			return
		}
	}
}

// expire drops expired keys. Keys are ordered by last mark, so it stops at
// the first live one.
func (c *Cache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(c.entries[key].seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.entries, key)
	}
}

// Close stops the expiry loop. Safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
