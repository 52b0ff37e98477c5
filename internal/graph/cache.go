package graph

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/moolen-fork/changeintel/internal/models"
)

// ImpactCacheConfig configures the bounded cache in front of
// GetUpstreamImpact/GetDownstreamImpact. Blast-radius and correlation
// calls repeat the same traversals across a burst of related change
// events, so caching by (node, direction, maxDepth) avoids re-walking
// the graph on every call.
type ImpactCacheConfig struct {
	MaxEntries int
	TTL        time.Duration
	Enabled    bool
}

// DefaultImpactCacheConfig returns the cache's defaults: 512 entries,
// 2 minute TTL, enabled.
func DefaultImpactCacheConfig() ImpactCacheConfig {
	return ImpactCacheConfig{MaxEntries: 512, TTL: 2 * time.Minute, Enabled: true}
}

type cachedImpact struct {
	paths     []models.ImpactPath
	expiresAt time.Time
}

// ImpactCache wraps a ServiceGraph's traversal calls with a TTL-bounded LRU.
// Entries leave the cache only by TTL expiry, LRU eviction, or an explicit
// Invalidate call; mutating the underlying graph does not invalidate them.
type ImpactCache struct {
	graph   *ServiceGraph
	config  ImpactCacheConfig
	cache   *lru.Cache[string, cachedImpact]
	mu      sync.Mutex
	hits    int64
	misses  int64
}

// NewImpactCache wraps graph with a cache of the given configuration.
func NewImpactCache(g *ServiceGraph, cfg ImpactCacheConfig) (*ImpactCache, error) {
	size := cfg.MaxEntries
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, cachedImpact](size)
	if err != nil {
		return nil, err
	}
	return &ImpactCache{graph: g, config: cfg, cache: c}, nil
}

func impactCacheKey(node string, dir direction, maxDepth int) string {
	return fmt.Sprintf("%s|%d|%d", node, dir, maxDepth)
}

// GetUpstreamImpact is GetUpstreamImpact with caching.
func (c *ImpactCache) GetUpstreamImpact(node string, maxDepth int) []models.ImpactPath {
	return c.get(node, directionUpstream, maxDepth, c.graph.GetUpstreamImpact)
}

// GetDownstreamImpact is GetDownstreamImpact with caching.
func (c *ImpactCache) GetDownstreamImpact(node string, maxDepth int) []models.ImpactPath {
	return c.get(node, directionDownstream, maxDepth, c.graph.GetDownstreamImpact)
}

func (c *ImpactCache) get(node string, dir direction, maxDepth int, compute func(string, int) []models.ImpactPath) []models.ImpactPath {
	if !c.config.Enabled {
		return compute(node, maxDepth)
	}
	key := impactCacheKey(node, dir, maxDepth)

	c.mu.Lock()
	if entry, ok := c.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
		c.hits++
		c.mu.Unlock()
		return entry.paths
	}
	c.misses++
	c.mu.Unlock()

	paths := compute(node, maxDepth)

	c.mu.Lock()
	c.cache.Add(key, cachedImpact{paths: paths, expiresAt: time.Now().Add(c.config.TTL)})
	c.mu.Unlock()
	return paths
}

// Invalidate clears every cached entry. Call after any graph mutation
// (addService, addDependency, removeService, merge, fromJSON) that could
// change traversal results.
func (c *ImpactCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Stats reports cumulative hit/miss counts, for debugging and metrics.
func (c *ImpactCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
