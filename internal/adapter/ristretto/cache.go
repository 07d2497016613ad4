// Package ristretto implements the cache port using dgraph-io/ristretto as L1 in-process cache.
package ristretto

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dgraph-io/ristretto/v2/z"
)

// minSweep is the index size below which no sweep runs.
const minSweep = 1024

// indexed is a key held by the prefix index, addressed by its ristretto hash.
type indexed struct {
	key      string
	conflict uint64
}

// Cache wraps a ristretto cache as an in-process L1 cache.
//
// DeletePrefix needs the string keys, which ristretto does not keep. The
// index drops keys that ristretto evicts or rejects through its callbacks.
// Keys that expire are dropped by a sweep that runs whenever the index
// doubles past its size after the previous sweep.
type Cache struct {
	c *ristretto.Cache[string, []byte]

	mu        sync.Mutex
	keys      map[uint64]indexed
	nextSweep int
}

// New creates a ristretto-backed cache. maxCostBytes is the maximum total
// size of cached values in bytes.
func New(maxCostBytes int64) (*Cache, error) {
	counters := maxCostBytes / 100 * 10 // ~10x expected items
	if counters < 1000 {
		counters = 1000
	}
	cache := &Cache{keys: make(map[uint64]indexed), nextSweep: minSweep}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
		KeyToHash:   z.KeyToHash[string],
		OnEvict:     cache.forget,
		OnReject:    cache.forget,
	})
	if err != nil {
		return nil, err
	}
	cache.c = c
	return cache, nil
}

func (c *Cache) forget(item *ristretto.Item[[]byte]) {
	c.mu.Lock()
	if e, ok := c.keys[item.Key]; ok && e.conflict == item.Conflict {
		delete(c.keys, item.Key)
	}
	c.mu.Unlock()
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value in the cache with the given TTL. A ttl <= 0 never expires.
// Writes are applied asynchronously; call Wait to observe them.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	h, conflict := z.KeyToHash(key)

	// Indexed before the write so a rejection callback always finds it.
	c.mu.Lock()
	c.keys[h] = indexed{key: key, conflict: conflict}
	sweep := len(c.keys) > c.nextSweep
	c.mu.Unlock()

	if !c.c.SetWithTTL(key, value, int64(len(value)), ttl) {
		c.mu.Lock()
		if e, ok := c.keys[h]; ok && e.conflict == conflict {
			delete(c.keys, h)
		}
		c.mu.Unlock()
	}
	if sweep {
		c.sweep()
	}
	return nil
}

// sweep drops index entries whose value is gone, which catches expired keys.
func (c *Cache) sweep() {
	// Wait runs eviction callbacks, which take c.mu.
	c.c.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for h, e := range c.keys {
		if _, ok := c.c.Get(e.key); !ok {
			delete(c.keys, h)
		}
	}
	c.nextSweep = max(minSweep, 2*len(c.keys))
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	h, _ := z.KeyToHash(key)
	c.mu.Lock()
	delete(c.keys, h)
	c.mu.Unlock()
	return nil
}

// DeletePrefix removes every key that starts with prefix.
func (c *Cache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	var doomed []string
	c.mu.Lock()
	for h, e := range c.keys {
		if strings.HasPrefix(e.key, prefix) {
			doomed = append(doomed, e.key)
			delete(c.keys, h)
		}
	}
	c.mu.Unlock()

	// Del can block on ristretto's write buffer, whose consumer calls forget.
	for _, k := range doomed {
		c.c.Del(k)
	}
	return len(doomed), nil
}

// Clear drops every entry.
func (c *Cache) Clear(_ context.Context) error {
	c.c.Clear()
	c.mu.Lock()
	c.keys = make(map[uint64]indexed)
	c.nextSweep = minSweep
	c.mu.Unlock()
	return nil
}

// Len returns the number of keys in the prefix index.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Wait blocks until buffered writes have been applied.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
