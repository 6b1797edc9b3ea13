package cache

import (
	"context"
	"sync"
)

// InMemoryCache is a BlockCache held in process memory
type InMemoryCache struct {
	blocks map[uint64]map[string][]byte
	mutex  sync.RWMutex
}

var _ BlockCache = (*InMemoryCache)(nil)

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		blocks: make(map[uint64]map[string][]byte),
	}
}

func (c *InMemoryCache) Get(_ context.Context, blockNumber uint64, fingerprint string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	value, ok := c.blocks[blockNumber][fingerprint]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), value...), nil
}

func (c *InMemoryCache) Set(_ context.Context, blockNumber uint64, fingerprint string, value []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	block, ok := c.blocks[blockNumber]
	if !ok {
		block = make(map[string][]byte)
		c.blocks[blockNumber] = block
	}

	block[fingerprint] = append([]byte(nil), value...)

	return nil
}

func (c *InMemoryCache) ClearBefore(_ context.Context, blockNumber uint64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for number := range c.blocks {
		if number < blockNumber {
			delete(c.blocks, number)
		}
	}

	return nil
}

// BlockCount returns the number of blocks holding at least one result
func (c *InMemoryCache) BlockCount() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.blocks)
}

func (c *InMemoryCache) Healthcheck(_ context.Context) error {
	return nil
}
