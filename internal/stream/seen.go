// ABOUTME: Thread-safe TTL cache for tracking recently seen stream keys.
// ABOUTME: Backs finalized-stream suppression and unread dedup in the Ingestor.

package stream

import (
	"container/list"
	"sync"
	"time"
)

// seenEntry stores the timestamp and list element for a cached key.
type seenEntry struct {
	timestamp time.Time
	element   *list.Element
}

// seenCache is a thread-safe, TTL-based, size-limited record of stream
// keys. The Ingestor keeps two: one for finalized streams (so late chunks
// cannot resurrect or overwrite a completed message) and one for message
// ids that already incremented an unread counter. A doubly-linked list
// maintains insertion order for O(1) eviction at capacity.
type seenCache struct {
	mu      sync.RWMutex
	seen    map[string]*seenEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// newSeenCache creates a cache with the given TTL and maximum size. A
// background goroutine periodically removes expired entries; callers must
// Close the cache to stop it.
func newSeenCache(ttl time.Duration, maxSize int) *seenCache {
	c := &seenCache{
		seen:    make(map[string]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Check reports whether the key was marked within the TTL window.
func (c *seenCache) Check(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[key]
	if !ok {
		return false
	}
	return time.Since(entry.timestamp) < c.ttl
}

// CheckAndMark atomically checks a key and marks it if unseen. It returns
// true when the key was already present, false when it is new and now
// marked. The single lock avoids a check-then-mark race between events
// for the same message arriving on different connections.
func (c *seenCache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if ok && time.Since(entry.timestamp) < c.ttl {
		return true
	}

	c.markLocked(key)
	return false
}

// Mark records that a key has been seen. If the cache is at capacity, the
// oldest entry is evicted to make room.
func (c *seenCache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// Forget drops a key so later Checks treat it as unseen.
func (c *seenCache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if !ok {
		return
	}
	c.order.Remove(entry.element)
	delete(c.seen, key)
}

// markLocked is the internal mark implementation. Must be called with mu held.
func (c *seenCache) markLocked(key string) {
	now := time.Now()

	// Existing keys refresh their timestamp and move to the back.
	if entry, exists := c.seen[key]; exists {
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &seenEntry{
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *seenCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// cleanup runs in a background goroutine, periodically removing expired
// entries.
func (c *seenCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *seenCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.seen {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *seenCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
