// Package counting keeps cumulative, optionally hierarchical, event counts.
package counting

import (
	"maps"
	"sync"
)

// Counter accumulates named counts. A child counter forwards every
// increment to its parent under "prefix_"+key.
type Counter struct {
	mu     sync.Mutex
	parent *Counter
	prefix string
	counts map[string]int
}

// New creates a counter. parent may be nil.
func New(parent *Counter, prefix string) *Counter {
	return &Counter{
		parent: parent,
		prefix: prefix,
		counts: make(map[string]int),
	}
}

// Increment adds counts and returns a snapshot of all counts held by this
// counter.
func (c *Counter) Increment(counts map[string]int) map[string]int {
	c.mu.Lock()
	for k, v := range counts {
		c.counts[k] += v
	}
	snapshot := maps.Clone(c.counts)
	c.mu.Unlock()

	if c.parent != nil {
		forwarded := make(map[string]int, len(counts))
		for k, v := range counts {
			forwarded[c.key(k)] = v
		}
		c.parent.Increment(forwarded)
	}
	return snapshot
}

// Counts returns a snapshot of the current counts.
func (c *Counter) Counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}

// Get returns a single count, zero when absent.
func (c *Counter) Get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

func (c *Counter) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + "_" + k
}
