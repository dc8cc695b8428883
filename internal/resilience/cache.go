package resilience

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/inkwell-ai/inkwell/internal/llm"
)

// Fingerprint derives the cache key from the model, normalized message
// content, and visibility. The key is content-addressed and global across
// sessions: identical prompts may legitimately reuse identical completions.
func Fingerprint(model string, messages []llm.ChatMessage, visibility string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(visibility))
	for _, m := range messages {
		h.Write([]byte{0})
		h.Write([]byte(m.Role))
		h.Write([]byte{':'})
		h.Write([]byte(strings.TrimSpace(m.Content)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	value     llm.ChatResponse
	createdAt time.Time
	ttl       time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Cache holds completed responses keyed by request fingerprint. Entries are
// evicted lazily on read and swept periodically; no entry outlives its TTL.
// Constructed once per process and injected, never a package global.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache builds a cache with a default entry TTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached response for key if present and fresh. Expired
// entries are removed on the spot.
func (c *Cache) Get(key string) (llm.ChatResponse, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return llm.ChatResponse{}, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have refreshed it.
		if cur, ok := c.entries[key]; ok && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return llm.ChatResponse{}, false
	}
	return e.value, true
}

// Set stores a response under key with the cache's TTL.
func (c *Cache) Set(key string, value llm.ChatResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, createdAt: c.now(), ttl: c.ttl}
}

// Len returns the number of resident entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes all expired entries and reports how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}
