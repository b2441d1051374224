package llm

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ContextCache holds rendered cached-context blocks keyed by the objectives
// hash. When the objective set is stable across cycles the same block is
// reused, which lets providers with prompt caching hit their caches instead
// of re-ingesting the mission brief.
type ContextCache struct {
	cache *lru.Cache[string, string]
}

const contextCacheSize = 16

func NewContextCache() *ContextCache {
	c, _ := lru.New[string, string](contextCacheSize)
	return &ContextCache{cache: c}
}

// Get returns the cached block for the given objectives hash.
func (c *ContextCache) Get(hash string) (string, bool) {
	return c.cache.Get(hash)
}

// Put stores a rendered block under the objectives hash.
func (c *ContextCache) Put(hash, block string) {
	c.cache.Add(hash, block)
}

// Invalidate drops every cached block, forcing a rebuild on next use.
func (c *ContextCache) Invalidate() {
	c.cache.Purge()
}
