package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/sispromo/sispromo/internal/adapter/bolt"
	"github.com/sispromo/sispromo/internal/adapter/ristretto"
	"github.com/sispromo/sispromo/internal/adapter/tiered"
	"github.com/sispromo/sispromo/internal/config"
	"github.com/sispromo/sispromo/internal/port/cache"
)

// staleRetention is how long an entry outlives its TTL so it can still be
// served as a stale fallback while the API is unreachable.
const staleRetention = 7 * 24 * time.Hour

// Store is the backing key-value store of a ResponseCache.
type Store interface {
	cache.Cache
	cache.PrefixDeleter
	cache.Clearer
}

// entry is the persisted envelope around a response body.
type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	TTL       time.Duration   `json:"ttl"`
}

// fresh reports whether the entry is still within its TTL at now.
func (e *entry) fresh(now time.Time) bool {
	return now.Sub(e.Timestamp) < e.TTL
}

// Key builds the cache key for a request: the path, "?", and the
// canonical encoding of params. Keys are sorted and repeated values keep
// their order, so equal parameter sets always produce equal keys.
func Key(path string, params url.Values) string {
	return path + "?" + params.Encode()
}

// ResponseCache stores API responses with their creation time and TTL.
// Freshness is decided here, not by the store, so expired entries remain
// available as a fallback.
type ResponseCache struct {
	store  Store
	closer func() error
	now    func() time.Time
}

// NewResponseCache wraps store.
func NewResponseCache(store Store) *ResponseCache {
	return &ResponseCache{store: store, now: time.Now}
}

// OpenResponseCache builds the two-level cache described by cfg: an
// in-process ristretto layer in front of a bbolt file under cfg.CacheDir.
func OpenResponseCache(cfg config.Client) (*ResponseCache, error) {
	maxBytes := cfg.L1MaxSizeMB << 20
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	l1, err := ristretto.New(maxBytes)
	if err != nil {
		return nil, fmt.Errorf("response cache l1: %w", err)
	}
	dir := cfg.CacheDir
	if dir == "" {
		if dir, err = defaultDir(); err != nil {
			l1.Close()
			return nil, err
		}
	}
	l2, err := bolt.Open(filepath.Join(dir, "responses.db"), bolt.Options{})
	if err != nil {
		l1.Close()
		return nil, fmt.Errorf("response cache l2: %w", err)
	}
	if n, err := l2.PurgeExpired(context.Background()); err != nil {
		slog.Warn("response cache purge failed", "error", err)
	} else if n > 0 {
		slog.Debug("response cache purged", "entries", n)
	}

	c := NewResponseCache(tiered.New(l1, l2, cfg.DefaultTTL))
	c.closer = func() error {
		l1.Close()
		return l2.Close()
	}
	return c, nil
}

// Close releases the underlying layers.
func (c *ResponseCache) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}

// get returns the entry stored under key regardless of its freshness.
// Undecodable entries are dropped and reported as a miss.
func (c *ResponseCache) get(ctx context.Context, key string) (*entry, bool) {
	if c == nil {
		return nil, false
	}
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "response cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Data == nil {
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	return &e, true
}

// put stores data under key with the given freshness window.
func (c *ResponseCache) put(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(entry{Data: data, Timestamp: c.now(), TTL: ttl})
	if err != nil {
		slog.WarnContext(ctx, "response cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl+staleRetention); err != nil {
		slog.WarnContext(ctx, "response cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached variant of path and of the paths below it,
// e.g. "/stores" drops "/stores?" and "/stores/42?".
func (c *ResponseCache) Invalidate(ctx context.Context, path string) error {
	if c == nil {
		return nil
	}
	_, err1 := c.store.DeletePrefix(ctx, path+"?")
	_, err2 := c.store.DeletePrefix(ctx, path+"/")
	return errors.Join(err1, err2)
}

// Clear drops everything.
func (c *ResponseCache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.store.Clear(ctx)
}
