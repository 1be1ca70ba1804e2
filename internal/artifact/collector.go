package artifact

import (
	"errors"
	"fmt"
	"sync"
)

// ErrFinalized is returned by a Collector that has already been finalized or
// discarded.
var ErrFinalized = errors.New("artifact collector already finalized")

// Collector accumulates artifacts from concurrent unit workers. Artifacts are
// bucketed by unit index, so the finalized list is ordered by unit and, within
// a unit, by the order the artifacts were added.
type Collector struct {
	mu        sync.Mutex
	buckets   [][]Artifact
	finalized bool
}

// NewCollector creates a collector for a run of n units.
func NewCollector(n int) *Collector {
	return &Collector{buckets: make([][]Artifact, n)}
}

// Add records an artifact.
func (c *Collector) Add(a Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return ErrFinalized
	}
	if a.UnitIndex < 0 || a.UnitIndex >= len(c.buckets) {
		return fmt.Errorf("artifact %s: unit index %d out of range [0, %d)", a.Path, a.UnitIndex, len(c.buckets))
	}
	c.buckets[a.UnitIndex] = append(c.buckets[a.UnitIndex], a)
	return nil
}

// Len reports how many artifacts have been added.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.buckets {
		n += len(b)
	}
	return n
}

// Finalize returns the ordered artifact list. It succeeds once.
func (c *Collector) Finalize() ([]Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return nil, ErrFinalized
	}
	c.finalized = true
	return c.drain(), nil
}

// Discard returns everything collected so far, in order, and forgets it.
// The collector accepts nothing afterwards.
func (c *Collector) Discard() []Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalized = true
	return c.drain()
}

func (c *Collector) drain() []Artifact {
	out := []Artifact{}
	for i, b := range c.buckets {
		out = append(out, b...)
		c.buckets[i] = nil
	}
	return out
}
