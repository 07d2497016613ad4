// Package natskv implements the cache port using NATS JetStream KV as L2 remote cache.
package natskv

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache wraps a NATS JetStream KeyValue store as an L2 cache.
//
// Bucket-level TTL bounds retention; per-entry TTL is enforced on read from
// an 8-byte big-endian expiry (unix nanos, 0 = none) prefixed to each value.
// Keys are base64url-encoded because KV keys only allow [-/_=.a-zA-Z0-9].
type Cache struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// New creates a NATS KV-backed cache.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// Bucket creates or updates the KV bucket and returns it.
func Bucket(ctx context.Context, js jetstream.JetStream, name string, ttl time.Duration) (jetstream.KeyValue, error) {
	return js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: name,
		TTL:    ttl,
	})
}

// Get retrieves a value from the NATS KV store.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	v := entry.Value()
	if len(v) < 8 {
		return nil, false, nil
	}
	if exp := int64(binary.BigEndian.Uint64(v[:8])); exp > 0 && c.now().UnixNano() > exp {
		_ = c.kv.Delete(ctx, encodeKey(key))
		return nil, false, nil
	}
	return append([]byte(nil), v[8:]...), true, nil
}

// Set stores a value in the NATS KV store. A ttl <= 0 relies on the bucket TTL only.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = c.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(exp))
	copy(buf[8:], value)
	_, err := c.kv.Put(ctx, encodeKey(key), buf)
	return err
}

// Delete removes a value from the NATS KV store.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// DeletePrefix removes every key that starts with prefix.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, raw := range keys {
		k, ok := decodeKey(raw)
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := c.kv.Delete(ctx, raw); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}

// Clear removes every key in the bucket.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}
	for _, raw := range keys {
		if err := c.kv.Purge(ctx, raw); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return err
		}
	}
	return nil
}

func (c *Cache) keys(ctx context.Context) ([]string, error) {
	lister, err := c.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = lister.Stop() }()
	var out []string
	for k := range lister.Keys() {
		out = append(out, k)
	}
	return out, nil
}

func encodeKey(k string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(k))
}

func decodeKey(k string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(k)
	if err != nil {
		return "", false
	}
	return string(b), true
}
