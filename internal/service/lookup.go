package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sispromo/sispromo/internal/adapter/otel"
	"github.com/sispromo/sispromo/internal/config"
	"github.com/sispromo/sispromo/internal/port/cache"
	"github.com/sispromo/sispromo/internal/port/messagequeue"
)

// Lookup cache key prefixes. Each prefix belongs to one freshness class.
const (
	KeyStores      = "stores:"
	KeyBrands      = "brands:"
	KeyVisitPrices = "visit-prices:"
	KeyStates      = "states:"
	KeyDashboard   = "dashboard:"
)

// TieredCache is a two-level cache that can also evict from its local level
// only. Implemented by tiered.Cache.
type TieredCache interface {
	cache.Cache
	cache.PrefixDeleter
	DeleteLocal(ctx context.Context, key string) error
	DeleteLocalPrefix(ctx context.Context, prefix string) (int, error)
}

// LookupCache is a read-through JSON cache for reference data. Evictions
// are applied locally and shared, then announced on the queue so every
// other instance drops its in-process copy.
type LookupCache struct {
	c        TieredCache
	queue    messagequeue.Queue
	origin   string
	ttls     map[string]time.Duration
	fallback time.Duration
	metrics  *otel.Metrics
}

// NewLookupCache creates a LookupCache. queue may be nil for a single
// instance; origin identifies this instance in invalidation messages.
func NewLookupCache(c TieredCache, queue messagequeue.Queue, origin string, cfg config.Cache) *LookupCache {
	return &LookupCache{
		c:      c,
		queue:  queue,
		origin: origin,
		ttls: map[string]time.Duration{
			KeyStates:      cfg.LongTTL,
			KeyStores:      cfg.DefaultTTL,
			KeyBrands:      cfg.DefaultTTL,
			KeyVisitPrices: cfg.DefaultTTL,
			KeyDashboard:   cfg.ShortTTL,
		},
		fallback: cfg.DefaultTTL,
	}
}

// SetMetrics attaches metric instruments.
func (l *LookupCache) SetMetrics(m *otel.Metrics) { l.metrics = m }

// TTL returns the freshness window for key.
func (l *LookupCache) TTL(key string) time.Duration {
	for prefix, ttl := range l.ttls {
		if strings.HasPrefix(key, prefix) {
			return ttl
		}
	}
	return l.fallback
}

func keyClass(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// cached reads key from l or calls load and stores its result. A nil
// LookupCache always loads. Cache failures degrade to loading.
func cached[T any](ctx context.Context, l *LookupCache, key string, load func(context.Context) (T, error)) (T, error) {
	if l == nil {
		return load(ctx)
	}

	if data, ok, err := l.c.Get(ctx, key); err != nil {
		slog.WarnContext(ctx, "lookup cache get failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			l.metrics.RecordCache(ctx, keyClass(key), true)
			return v, nil
		}
		slog.WarnContext(ctx, "dropping undecodable cache entry", "key", key)
		_ = l.c.Delete(ctx, key)
	}
	l.metrics.RecordCache(ctx, keyClass(key), false)

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("marshal cache entry %s: %w", key, err)
	}
	if err := l.c.Set(ctx, key, data, l.TTL(key)); err != nil {
		slog.WarnContext(ctx, "lookup cache set failed", "key", key, "error", err)
	}
	return v, nil
}

// Invalidate evicts every key under the given prefixes and announces the
// eviction to other instances.
func (l *LookupCache) Invalidate(ctx context.Context, prefixes ...string) {
	if l == nil || len(prefixes) == 0 {
		return
	}
	for _, p := range prefixes {
		if _, err := l.c.DeletePrefix(ctx, p); err != nil {
			slog.WarnContext(ctx, "lookup cache invalidate failed", "prefix", p, "error", err)
		}
	}
	if l.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.CacheInvalidatePayload{Origin: l.origin, Prefixes: prefixes})
	if err != nil {
		return
	}
	if err := l.queue.Publish(ctx, messagequeue.SubjectCacheInvalidate, data); err != nil {
		slog.WarnContext(ctx, "publish cache invalidation failed", "error", err)
	}
}

// HandleInvalidation applies an invalidation published by another
// instance to the local level. Messages from this instance are ignored.
func (l *LookupCache) HandleInvalidation(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.CacheInvalidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode invalidation: %w", err)
	}
	if p.Origin == l.origin {
		return nil
	}
	var errs []error
	for _, k := range p.Keys {
		errs = append(errs, l.c.DeleteLocal(ctx, k))
	}
	for _, prefix := range p.Prefixes {
		_, err := l.c.DeleteLocalPrefix(ctx, prefix)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
