// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sispromo/sispromo/internal/port/cache"
)

// Cache combines an L1 (in-process) and L2 (remote or persistent) cache.
// Get checks L1 first, then L2 (backfilling L1 on L2 hit).
// Set and Delete operate on both levels.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache with the given L1 and L2 backends.
// l1Expire controls how long L2 backfill entries live in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2. On L2 hit, backfills L1.
// An unavailable L2 degrades to a miss.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "l2 cache get failed", "key", key, "error", err)
		return nil, false, nil
	}
	if found {
		_ = c.l1.Set(ctx, key, val, c.l1Expire)
		return val, true, nil
	}

	return nil, false, nil
}

// Set writes to both L1 and L2.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.l2.Set(ctx, key, value, ttl)
}

// Delete removes from both L1 and L2.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}

// DeletePrefix removes matching keys from both levels. Levels that cannot
// enumerate keys are skipped.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	n1, err := c.DeleteLocalPrefix(ctx, prefix)
	if err != nil {
		return n1, err
	}
	p, ok := c.l2.(cache.PrefixDeleter)
	if !ok {
		return n1, nil
	}
	n2, err := p.DeletePrefix(ctx, prefix)
	return max(n1, n2), err
}

// DeleteLocal removes a key from L1 only. Used when another instance has
// already removed it from the shared L2.
func (c *Cache) DeleteLocal(ctx context.Context, key string) error {
	return c.l1.Delete(ctx, key)
}

// DeleteLocalPrefix removes matching keys from L1 only.
func (c *Cache) DeleteLocalPrefix(ctx context.Context, prefix string) (int, error) {
	p, ok := c.l1.(cache.PrefixDeleter)
	if !ok {
		return 0, nil
	}
	return p.DeletePrefix(ctx, prefix)
}

// Clear empties both levels.
func (c *Cache) Clear(ctx context.Context) error {
	var errs []error
	for _, l := range []cache.Cache{c.l1, c.l2} {
		if cl, ok := l.(cache.Clearer); ok {
			errs = append(errs, cl.Clear(ctx))
		}
	}
	return errors.Join(errs...)
}
