package dirtree

import (
	"sync"
	"time"

	"github.com/fitsight-io/fitsight/pkg/logging"
)

// Cache holds at most one directory tree snapshot behind a read-write lock.
// Readers observe either the previous tree or the new one, never a partial
// tree: a newly built tree is published by a single assignment after
// construction finishes.
type Cache struct {
	// roots are the configured image roots.
	roots []string
	// exclude are additional basename glob patterns to skip when scanning.
	exclude []string
	// ttl is the snapshot freshness window.
	ttl time.Duration
	// logger is the cache logger.
	logger *logging.Logger
	// lock guards tree.
	lock sync.RWMutex
	// tree is the current snapshot, if any.
	tree *Tree
}

// NewCache creates a new directory tree cache for the specified roots.
func NewCache(roots []string, exclude []string, ttl time.Duration, logger *logging.Logger) *Cache {
	return &Cache{
		roots:   roots,
		exclude: exclude,
		ttl:     ttl,
		logger:  logger,
	}
}

// Roots returns the configured image roots.
func (c *Cache) Roots() []string {
	return c.roots
}

// Current returns the current snapshot without triggering a rebuild. It
// returns nil if no snapshot exists.
func (c *Cache) Current() *Tree {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.tree
}

// Get returns the cached tree if it exists and is fresh, rebuilding it
// otherwise.
func (c *Cache) Get() (*Tree, error) {
	return c.get(nil)
}

// GetWithProgress behaves like Get but reports rebuild progress through the
// specified callback if a rebuild is required.
func (c *Cache) GetWithProgress(progress ProgressFunc) (*Tree, error) {
	return c.get(progress)
}

func (c *Cache) get(progress ProgressFunc) (*Tree, error) {
	// Fast path: return the current snapshot while fresh.
	c.lock.RLock()
	tree := c.tree
	c.lock.RUnlock()
	if tree != nil && !tree.OlderThan(c.ttl) {
		return tree, nil
	}

	// Slow path: rebuild.
	return c.rebuild(progress)
}

// Rebuild forces an unconditional rebuild of the snapshot and reports
// progress through the specified callback, which may be nil.
func (c *Cache) Rebuild(progress ProgressFunc) (*Tree, error) {
	return c.rebuild(progress)
}

// Clear empties the snapshot slot, forcing a rebuild on next access.
func (c *Cache) Clear() {
	c.lock.Lock()
	c.tree = nil
	c.lock.Unlock()
	c.logger.Info("Directory tree cache cleared")
}

// Stats returns statistics for the current snapshot, or false if no snapshot
// exists.
func (c *Cache) Stats() (Stats, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.tree == nil {
		return Stats{}, false
	}
	return c.tree.Stats(), true
}

func (c *Cache) rebuild(progress ProgressFunc) (*Tree, error) {
	// Build outside the lock so readers continue to observe the previous
	// snapshot during the walk.
	tree, err := Build(c.roots, c.exclude, progress, c.logger)
	if err != nil {
		return nil, err
	}

	// Publish with a single assignment.
	c.lock.Lock()
	c.tree = tree
	c.lock.Unlock()

	// Success.
	return tree, nil
}
