package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DefaultCacheMaxEntries bounds the in-memory response cache when the host
// does not configure a limit.
const DefaultCacheMaxEntries = 1024

// CacheMirror is an optional secondary store the cache writes through to.
// Lookups consult the mirror only on a local miss. Mirror failures are
// ignored; the in-memory map remains authoritative.
type CacheMirror interface {
	Get(ctx context.Context, key string) (*Result, bool)
	Set(ctx context.Context, key string, res *Result)
}

// ResponseCache maps request fingerprints to prior model responses. It is
// shared by every analysis in the process. Duplicate concurrent
// computations of the same key are tolerated; the last write wins.
type ResponseCache struct {
	mu         sync.RWMutex
	entries    map[string]*Result
	order      []string
	maxEntries int
	mirror     CacheMirror
}

// NewResponseCache creates a cache bounded to maxEntries. Values at or
// below zero fall back to DefaultCacheMaxEntries.
func NewResponseCache(maxEntries int) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &ResponseCache{
		entries:    make(map[string]*Result),
		maxEntries: maxEntries,
	}
}

// WithMirror attaches a write-through mirror and returns the cache.
func (c *ResponseCache) WithMirror(m CacheMirror) *ResponseCache {
	c.mu.Lock()
	c.mirror = m
	c.mu.Unlock()
	return c
}

// CacheKey builds a stable key from the method name, model id, prompt and
// the fingerprint of any binary payload. Byte-equal prompts always yield
// the same key.
func CacheKey(method, model, prompt string, binary []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	if len(binary) > 0 {
		h.Write([]byte{0})
		fp := sha256.Sum256(binary)
		h.Write(fp[:])
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Get returns the cached response for key, consulting the mirror on a
// local miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (*Result, bool) {
	c.mu.RLock()
	res, ok := c.entries[key]
	mirror := c.mirror
	c.mu.RUnlock()
	if ok {
		return res, true
	}
	if mirror != nil {
		if res, ok := mirror.Get(ctx, key); ok {
			c.put(key, res)
			return res, true
		}
	}
	return nil, false
}

// Set stores a response under key, evicting the oldest entry when the
// cache is full, and writes through to the mirror when one is attached.
func (c *ResponseCache) Set(ctx context.Context, key string, res *Result) {
	c.put(key, res)
	c.mu.RLock()
	mirror := c.mirror
	c.mu.RUnlock()
	if mirror != nil {
		mirror.Set(ctx, key, res)
	}
}

func (c *ResponseCache) put(key string, res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = res
}

// Len returns the number of cached entries.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
