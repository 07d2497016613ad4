// Package cache defines the port interfaces for caching.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching.
// A ttl <= 0 stores the value without expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Clearer is implemented by caches that can drop every entry.
type Clearer interface {
	Clear(ctx context.Context) error
}

// PrefixDeleter is implemented by caches that can drop all keys sharing a
// prefix, e.g. every cached variant of one request path.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
