package artifact

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mmcdole/sift/internal/domain"
)

const defaultMaxEntries = 100

// CacheStore is a count-bounded LRU map from cache keys to decoded
// artifacts. Callers only store full-quality artifacts; degraded results are
// delivered to waiters but never land here.
type CacheStore struct {
	entries *lru.Cache[domain.CacheKey, cacheEntry]
	logger  *slog.Logger
}

type cacheEntry struct {
	artifact domain.Artifact
	cost     int
}

// NewCacheStore creates a cache bounded to maxEntries (default 100 when <= 0).
func NewCacheStore(maxEntries int, logger *slog.Logger) *CacheStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	// lru.New only fails on a non-positive size, which is guarded above.
	entries, _ := lru.New[domain.CacheKey, cacheEntry](maxEntries)
	return &CacheStore{entries: entries, logger: logger}
}

// Get returns the cached artifact for key, marking it most recently used.
func (c *CacheStore) Get(key domain.CacheKey) (domain.Artifact, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return domain.Artifact{}, false
	}
	return entry.artifact, true
}

// Put stores an artifact, evicting the least recently used entry when the
// bound is exceeded.
func (c *CacheStore) Put(key domain.CacheKey, a domain.Artifact, cost int) {
	c.entries.Add(key, cacheEntry{artifact: a, cost: cost})
}

// Remove drops a single entry.
func (c *CacheStore) Remove(key domain.CacheKey) {
	c.entries.Remove(key)
}

// Invalidate removes all entries for an asset, across sizes and variants.
// Used when an asset is reloaded or removed.
func (c *CacheStore) Invalidate(assetID string) {
	for _, key := range c.entries.Keys() {
		if key.AssetID == assetID {
			c.entries.Remove(key)
		}
	}
}

// Len returns the current entry count.
func (c *CacheStore) Len() int { return c.entries.Len() }
