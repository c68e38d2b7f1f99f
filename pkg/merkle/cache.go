package merkle

import (
	"sync"

	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// rangeCache memoizes subtree roots keyed by (start, length). Leaves are
// append-only, so an entry never goes stale once computed.
type rangeCache struct {
	mu      sync.RWMutex
	entries map[rangeKey]types.Hash
}

func newRangeCache() *rangeCache {
	return &rangeCache{entries: make(map[rangeKey]types.Hash)}
}

func (c *rangeCache) get(key rangeKey) (types.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[key]
	return h, ok
}

func (c *rangeCache) put(key rangeKey, h types.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = h
}

func (c *rangeCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
