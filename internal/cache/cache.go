// Package cache provides a content-addressed store of correction results.
//
// Keys are hashes of the exact outbound prompt text, so identical chunks
// (repeated boilerplate across groups) are corrected once per run. Entries
// are never evicted; a Cache lives for one orchestration run.
package cache

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jackzampolin/redline/internal/prompts"
	"github.com/jackzampolin/redline/internal/types"
)

// Cache maps prompt hashes to parsed correction lists.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]types.CorrectionResult

	inflight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// ComputeFunc produces the results for a missing key.
// store reports whether the results may be cached.
type ComputeFunc func() (results []types.CorrectionResult, store bool, err error)

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string][]types.CorrectionResult)}
}

// ComputeKey returns the deterministic key for an outbound payload.
func ComputeKey(payload string) string {
	return prompts.HashText(payload)
}

// TryGet returns a copy of the cached list for key.
func (c *Cache) TryGet(key string) ([]types.CorrectionResult, bool) {
	c.mu.RLock()
	list, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return clone(list), true
}

// Put stores list under key unless the key is already present.
// Returns true if the list was stored; the first stored list wins.
func (c *Cache) Put(key string, list []types.CorrectionResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return false
	}
	c.entries[key] = clone(list)
	return true
}

type computed struct {
	results []types.CorrectionResult
	cached  bool
}

// GetOrCompute returns the cached list for key, or runs fn exactly once per key
// among concurrent callers and stores its result when fn allows it.
// hit is true when the caller did not run fn itself.
func (c *Cache) GetOrCompute(key string, fn ComputeFunc) (results []types.CorrectionResult, hit bool, err error) {
	if list, ok := c.TryGet(key); ok {
		c.hits.Add(1)
		return list, true, nil
	}

	executed := false
	v, err, _ := c.inflight.Do(key, func() (any, error) {
		executed = true
		if list, ok := c.TryGet(key); ok {
			return computed{results: list, cached: true}, nil
		}
		list, store, err := fn()
		if err != nil {
			return nil, err
		}
		if store {
			c.Put(key, list)
		}
		return computed{results: list}, nil
	})
	if err != nil {
		c.misses.Add(1)
		return nil, false, err
	}

	res := v.(computed)
	hit = res.cached || !executed
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return clone(res.results), hit, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries: c.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func clone(list []types.CorrectionResult) []types.CorrectionResult {
	if list == nil {
		return nil
	}
	out := make([]types.CorrectionResult, len(list))
	copy(out, list)
	return out
}
