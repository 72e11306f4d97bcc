package embeddings

import (
	"context"
	"sync"
	"time"
)

// cacheEntry holds one cached query embedding.
type cacheEntry struct {
	vector    []float32
	expiresAt time.Time
	createdAt time.Time

	// lastAccessed tracks LRU eviction (internal use only)
	lastAccessed time.Time
}

// CachingProvider wraps a Provider and caches query embeddings in memory
// with TTL and LRU eviction. Retrieval re-embeds the same query text on
// every iteration of a session, and interactive users repeat questions;
// both hit the cache instead of the model.
//
// Document embeddings are deliberately not cached: ingest batches are
// large, rarely repeat, and would evict the query entries that matter.
type CachingProvider struct {
	inner Provider

	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
}

var _ Provider = (*CachingProvider)(nil)

// NewCachingProvider wraps inner with a query-embedding cache holding at
// most maxEntries vectors, each valid for ttl.
func NewCachingProvider(inner Provider, maxEntries int, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		inner:      inner,
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// EmbedQuery returns the cached embedding for text when present and fresh,
// delegating to the wrapped provider otherwise. Expired entries are removed
// on access. The returned slice is a copy; callers may mutate it freely.
func (c *CachingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.get(text); ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	c.set(text, vec)
	return cloneVector(vec), nil
}

// EmbedDocuments passes straight through to the wrapped provider.
func (c *CachingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedDocuments(ctx, texts)
}

// Dimension returns the wrapped provider's embedding dimension.
func (c *CachingProvider) Dimension() int {
	return c.inner.Dimension()
}

// Close drops all cached entries and closes the wrapped provider.
func (c *CachingProvider) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
	return c.inner.Close()
}

// Len reports the number of live entries, expired or not.
func (c *CachingProvider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CachingProvider) get(text string) ([]float32, bool) {
	c.mu.RLock()
	entry, exists := c.entries[text]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, text)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	entry.lastAccessed = time.Now()
	c.mu.Unlock()

	return cloneVector(entry.vector), true
}

func (c *CachingProvider) set(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[text]; !exists {
			c.evictLRU()
		}
	}

	c.entries[text] = &cacheEntry{
		vector:       cloneVector(vec),
		expiresAt:    now.Add(c.ttl),
		createdAt:    now,
		lastAccessed: now,
	}
}

// evictLRU removes the least recently used entry.
// Caller must hold the write lock.
func (c *CachingProvider) evictLRU() {
	var oldestText string
	var oldestTime time.Time

	first := true
	for text, entry := range c.entries {
		if first || entry.lastAccessed.Before(oldestTime) {
			oldestText = text
			oldestTime = entry.lastAccessed
			first = false
		}
	}

	if oldestText != "" {
		delete(c.entries, oldestText)
	}
}

// cloneVector copies an embedding so cached vectors and caller-visible
// vectors never alias.
func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
