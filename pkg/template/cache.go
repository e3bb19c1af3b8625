package template

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache shares loaded templates between meshes, keyed by absolute folder
// path. A zero TTL keeps templates for the lifetime of the cache.
type Cache struct {
	mu      sync.Mutex
	entries *cache.Cache
}

// NewCache creates a template cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	expiration, cleanup := ttl, ttl
	if ttl <= 0 {
		expiration, cleanup = cache.NoExpiration, 0
	}
	return &Cache{entries: cache.New(expiration, cleanup)}
}

// Get returns the template stored for folder, loading it on a miss.
func (c *Cache) Get(folder string) (*Template, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving template folder %s: %w", folder, err)
	}

	if v, ok := c.entries.Get(abs); ok {
		return v.(*Template), nil
	}

	// one loader per cache, concurrent callers wait for the first load
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries.Get(abs); ok {
		return v.(*Template), nil
	}

	t, err := Load(abs)
	if err != nil {
		return nil, err
	}
	c.entries.Set(abs, t, cache.DefaultExpiration)
	return t, nil
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	return c.entries.ItemCount()
}

// Flush drops every cached template.
func (c *Cache) Flush() {
	c.entries.Flush()
}
