package embedder

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of cached query vectors.
const DefaultCacheSize = 1000

// Cache is an LRU of computed embeddings keyed by text hash. Query vectors
// are small and queries repeat often, so even a modest cache removes most
// query-time API calls.
type Cache struct {
	entries *lru.Cache[string, []float32]
}

// NewCache creates a cache holding up to maxEntries vectors.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	entries, _ := lru.New[string, []float32](maxEntries)
	return &Cache{entries: entries}
}

// Get returns a copy of the cached vector for key, if present. Copying
// keeps callers from mutating the cached value in place.
func (c *Cache) Get(key string) ([]float32, bool) {
	vec, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a copy of vec under key.
func (c *Cache) Set(key string, vec []float32) {
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.entries.Add(key, stored)
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops every cached vector.
func (c *Cache) Purge() { c.entries.Purge() }

// hashText returns the cache key for a text.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
