package embedder

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/oceanbase/powermem-recall/pkg/metrics"
)

// DefaultCacheSize is the entry bound used when CacheConfig.MaxEntries is not set.
const DefaultCacheSize = 1000

// CacheConfig configures a query embedding cache.
type CacheConfig struct {
	// MaxEntries bounds the number of cached vectors. Default: 1000
	MaxEntries int

	// Metrics receives hit, miss and eviction counts (optional).
	Metrics *metrics.Metrics
}

// Cache memoizes query embeddings in front of a Provider.
//
// Entries are keyed by the exact query string and evicted least recently used
// first once MaxEntries is reached. A vector is only stored after the provider
// returned it successfully from its primary tier, and concurrent misses for
// the same query share one provider call. Returned vectors are copies.
//
// Cache implements Provider, so it can wrap any provider transparently.
//
// Example usage:
//
//	cache := embedder.NewCache(provider, embedder.CacheConfig{MaxEntries: 500})
//	vec, err := cache.GetOrEmbed(ctx, "typescript project")
type Cache struct {
	provider   Provider
	maxEntries int
	metrics    *metrics.Metrics

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used

	group singleflight.Group
}

type cacheEntry struct {
	key    string
	vector []float64
}

// NewCache creates a new query embedding cache over provider.
func NewCache(provider Provider, cfg CacheConfig) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheSize
	}
	return &Cache{
		provider:   provider,
		maxEntries: cfg.MaxEntries,
		metrics:    cfg.Metrics,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// GetOrEmbed returns the embedding of query, calling the provider on a miss.
//
// Provider errors are returned unchanged and nothing is cached for them.
func (c *Cache) GetOrEmbed(ctx context.Context, query string) ([]float64, error) {
	vec, _, err := c.GetOrEmbedTier(ctx, query)
	return vec, err
}

// tieredVector is the shared result of one provider call.
type tieredVector struct {
	vector []float64
	tier   int
}

// GetOrEmbedTier is GetOrEmbed that also reports which provider tier
// answered. Cached vectors are always tier 0: answers from secondary tiers
// are returned but never stored.
//
// Concurrent misses share one provider call. That call is detached from the
// cancellation of whichever caller started it, and each caller stops waiting
// when its own ctx is done.
func (c *Cache) GetOrEmbedTier(ctx context.Context, query string) ([]float64, int, error) {
	if vec, ok := c.get(query); ok {
		c.metrics.CacheHit()
		return vec, 0, nil
	}
	c.metrics.CacheMiss()

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(query, func() (interface{}, error) {
		// A concurrent caller may have filled the entry while we waited.
		if vec, ok := c.get(query); ok {
			return tieredVector{vector: vec}, nil
		}
		vec, tier, err := EmbedWithTier(shared, c.provider, query)
		if err != nil {
			return nil, err
		}
		if tier == 0 {
			c.put(query, vec)
		}
		return tieredVector{vector: vec, tier: tier}, nil
	})

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, 0, res.Err
		}
		tv := res.Val.(tieredVector)
		return cloneVector(tv.vector), tv.tier, nil
	}
}

// Embed implements Provider.
func (c *Cache) Embed(ctx context.Context, text string) ([]float64, error) {
	return c.GetOrEmbed(ctx, text)
}

// EmbedTier implements TierReporter.
func (c *Cache) EmbedTier(ctx context.Context, text string) ([]float64, int, error) {
	return c.GetOrEmbedTier(ctx, text)
}

// EmbedBatch implements Provider. Cached texts are served locally; the rest
// are embedded in one provider batch call and cached.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, _, err := c.EmbedBatchTier(ctx, texts)
	return vecs, err
}

// EmbedBatchTier implements TierReporter. The reported tier is the one that
// answered the uncached texts, or 0 when every text was cached.
func (c *Cache) EmbedBatchTier(ctx context.Context, texts []string) ([][]float64, int, error) {
	out := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.get(text); ok {
			c.metrics.CacheHit()
			out[i] = vec
			continue
		}
		c.metrics.CacheMiss()
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, 0, nil
	}

	vecs, tier, err := EmbedBatchWithTier(ctx, c.provider, missing)
	if err != nil {
		return nil, 0, err
	}
	for j, vec := range vecs {
		if j >= len(missingIdx) {
			break
		}
		if tier == 0 {
			c.put(missing[j], vec)
		}
		out[missingIdx[j]] = cloneVector(vec)
	}
	return out, tier, nil
}

// Dimensions implements Provider.
func (c *Cache) Dimensions() int {
	return c.provider.Dimensions()
}

// Close implements Provider. It purges the cache and closes the provider.
func (c *Cache) Close() error {
	c.Purge()
	return c.provider.Close()
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge removes every cached vector.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.metrics.CacheSize(0)
}

func (c *Cache) get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return cloneVector(elem.Value.(*cacheEntry).vector), true
}

func (c *Cache) put(key string, vec []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).vector = cloneVector(vec)
		c.order.MoveToFront(elem)
		return
	}

	evicted := 0
	for c.order.Len() >= c.maxEntries {
		c.evictOldest()
		evicted++
	}

	elem := c.order.PushFront(&cacheEntry{key: key, vector: cloneVector(vec)})
	c.entries[key] = elem

	if evicted > 0 {
		c.metrics.CacheEvicted(evicted, c.order.Len())
	} else {
		c.metrics.CacheSize(c.order.Len())
	}
}

// evictOldest removes the least recently used entry. Caller holds c.mu.
func (c *Cache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*cacheEntry).key)
}

func cloneVector(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
