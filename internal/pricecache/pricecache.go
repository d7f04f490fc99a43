// Package pricecache holds the latest known tick per tracked instrument.
// Single writer (the feed client), many concurrent readers (REST handlers,
// broadcaster replay).
package pricecache

import (
	"sync"

	"stockrelayv1/internal/model"
)

// Cache maps symbol to its most recently observed tick. Entries are only
// created or overwritten, never deleted; the map is cleared only by
// process restart.
type Cache struct {
	mu    sync.RWMutex
	ticks map[string]model.Tick
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{ticks: make(map[string]model.Tick)}
}

// Update overwrites the entry for tick.Symbol unconditionally.
// Last write wins; no ordering check against the previous value.
func (c *Cache) Update(t model.Tick) {
	c.mu.Lock()
	c.ticks[t.Symbol] = t
	c.mu.Unlock()
}

// Get returns the latest tick for symbol, if one has been observed.
func (c *Cache) Get(symbol string) (model.Tick, bool) {
	c.mu.RLock()
	t, ok := c.ticks[symbol]
	c.mu.RUnlock()
	return t, ok
}

// All returns one tick per known symbol, order unspecified.
func (c *Cache) All() []model.Tick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Tick, 0, len(c.ticks))
	for _, t := range c.ticks {
		out = append(out, t)
	}
	return out
}

// Len returns the number of symbols with at least one observed tick.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ticks)
}
