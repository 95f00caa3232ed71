package catalog

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache keeps one loaded inventory per project for the life of the process.
// Concurrent first loads of the same project share one load. Failed loads
// are not cached.
type Cache struct {
	mu    sync.RWMutex
	rows  map[string][]Row
	group singleflight.Group
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{rows: map[string][]Row{}}
}

// Rows returns the cached inventory for project, calling load on a miss.
func (c *Cache) Rows(ctx context.Context, project string, load func(context.Context) ([]Row, error)) ([]Row, error) {
	c.mu.RLock()
	rows, ok := c.rows[project]
	c.mu.RUnlock()
	if ok {
		return rows, nil
	}
	v, err, _ := c.group.Do(project, func() (any, error) {
		c.mu.RLock()
		rows, ok := c.rows[project]
		c.mu.RUnlock()
		if ok {
			return rows, nil
		}
		rows, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.rows[project] = rows
		c.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Row), nil
}

// Loaded reports whether project is cached.
func (c *Cache) Loaded(project string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rows[project]
	return ok
}
