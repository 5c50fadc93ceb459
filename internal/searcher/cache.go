package searcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tmcfarland/pagesearch/pkg/types"
)

// Query cache defaults.
const (
	DefaultQueryCacheSize = 256
	DefaultQueryCacheTTL  = 5 * time.Minute
)

type cachedSearch struct {
	results []types.FusedResult
	stats   types.SearchStats
	expires time.Time
}

// QueryCache is a TTL-bounded LRU of complete search results. Entries are
// keyed by every query field that affects the outcome; the whole cache is
// cleared whenever the index changes.
type QueryCache struct {
	entries *lru.Cache[string, cachedSearch]
	ttl     time.Duration
}

// NewQueryCache creates a cache of up to size entries with the given TTL.
func NewQueryCache(size int, ttl time.Duration) *QueryCache {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultQueryCacheTTL
	}
	entries, _ := lru.New[string, cachedSearch](size)
	return &QueryCache{entries: entries, ttl: ttl}
}

func cacheKey(q types.SearchQuery) string {
	raw := fmt.Sprintf("%s|%s|%d|%d|%t|%g|%g",
		q.Mode, q.Text, q.Limit, q.Offset, q.Advanced, q.LexicalWeight, q.SemanticWeight)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Get returns cached results for the query if present and not expired.
func (c *QueryCache) Get(q types.SearchQuery) ([]types.FusedResult, *types.SearchStats, bool) {
	key := cacheKey(q)
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, nil, false
	}
	if time.Now().After(entry.expires) {
		c.entries.Remove(key)
		return nil, nil, false
	}

	results := make([]types.FusedResult, len(entry.results))
	copy(results, entry.results)
	stats := entry.stats
	return results, &stats, true
}

// Set stores a search outcome under the query's key.
func (c *QueryCache) Set(q types.SearchQuery, results []types.FusedResult, stats *types.SearchStats) {
	stored := make([]types.FusedResult, len(results))
	copy(stored, results)

	entry := cachedSearch{
		results: stored,
		expires: time.Now().Add(c.ttl),
	}
	if stats != nil {
		entry.stats = *stats
	}
	c.entries.Add(cacheKey(q), entry)
}

// Clear drops every cached entry.
func (c *QueryCache) Clear() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *QueryCache) Len() int {
	return c.entries.Len()
}
