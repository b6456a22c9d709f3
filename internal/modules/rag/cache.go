package rag

import (
	"strings"
	"sync"
)

// EmbeddingCache keeps theme embeddings in memory so repeated searches for
// the same theme skip the provider round trip. Keys are normalized
// (lowercased, trimmed); nil vectors are never stored, so a failed embedding
// does not poison the cache.
type EmbeddingCache struct {
	mu      sync.RWMutex
	entries map[string][]float64
}

func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{entries: make(map[string][]float64)}
}

func cacheKey(theme string) string {
	return strings.ToLower(strings.TrimSpace(theme))
}

// Get returns the cached vector for a theme, if any.
func (c *EmbeddingCache) Get(theme string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.entries[cacheKey(theme)]
	return vec, ok
}

// Put stores a vector. Nil and empty vectors are ignored.
func (c *EmbeddingCache) Put(theme string, vec []float64) {
	if len(vec) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(theme)] = vec
}

// Has reports whether a theme is cached.
func (c *EmbeddingCache) Has(theme string) bool {
	_, ok := c.Get(theme)
	return ok
}

// Size returns the number of cached themes.
func (c *EmbeddingCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached theme keys.
func (c *EmbeddingCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Clear empties the cache and returns how many entries were removed.
func (c *EmbeddingCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string][]float64)
	return n
}
