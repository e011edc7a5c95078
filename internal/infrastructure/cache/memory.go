package cache

import (
	"context"
	"sync"
	"time"

	"github.com/labelscan/backend/internal/domain"
)

// entry is a single cached extraction record with expiration
type entry struct {
	product    *domain.ExtractedProduct
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory result cache with TTL support.
// Extraction records are values: the engine never mutates them after
// returning, so storing the pointer is safe.
type MemoryCache struct {
	data  map[string]entry
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory result cache and starts a
// background sweep of expired entries.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]entry),
	}

	go c.cleanupExpired()

	return c
}

// Get retrieves a cached extraction record
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.ExtractedProduct, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	if time.Now().After(e.expiration) {
		return nil, domain.ErrCacheMiss
	}

	return e.product, nil
}

// Set stores an extraction record with TTL
func (c *MemoryCache) Set(ctx context.Context, key string, product *domain.ExtractedProduct, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = entry{
		product:    product,
		expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a cached record
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now()
		for key, e := range c.data {
			if now.After(e.expiration) {
				delete(c.data, key)
			}
		}
		c.mutex.Unlock()
	}
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}
