// Package bolt implements the cache port on a local bbolt file. It is the
// persistent layer of the API client's response cache.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "responses"

// Cache stores values in a single bbolt bucket.
// Value layout: 8 bytes big-endian expiresAt (unix nanos, 0 = never) || raw value.
// bbolt serializes writers itself, so no extra locking is needed.
type Cache struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// Options configures Open.
type Options struct {
	// Bucket is the bbolt bucket name; defaults to "responses".
	Bucket string
	// Timeout bounds waiting for the file lock held by another process.
	Timeout time.Duration
}

// Open initializes or opens the cache file at path, creating parent
// directories as needed.
func Open(path string, opts Options) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt cache dir: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("bolt open %s: %w", path, err)
	}
	bucket := []byte(defaultBucket)
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt bucket: %w", err)
	}
	return &Cache{db: db, bucket: bucket, now: time.Now}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the value if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	now := c.now().UnixNano()
	err = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(c.bucket).Get([]byte(key))
		if len(v) < 8 {
			return nil
		}
		if exp := int64(binary.BigEndian.Uint64(v[:8])); exp > 0 && now > exp {
			return nil
		}
		// v is only valid for the life of the transaction.
		data = append([]byte(nil), v[8:]...)
		ok = true
		return nil
	})
	return data, ok, err
}

// Set stores value; a ttl <= 0 never expires.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = c.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(exp))
	copy(buf[8:], value)
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Put([]byte(key), buf)
	})
}

// Delete removes a key.
func (c *Cache) Delete(_ context.Context, key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Delete([]byte(key))
	})
}

// DeletePrefix removes every key starting with prefix using an ordered
// cursor scan.
func (c *Cache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	p := []byte(prefix)
	n := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		cur := tx.Bucket(c.bucket).Cursor()
		for k, _ := cur.Seek(p); k != nil && bytes.HasPrefix(k, p); {
			if err := cur.Delete(); err != nil {
				return err
			}
			n++
			// Deleting under a cursor invalidates its position.
			k, _ = cur.Seek(p)
		}
		return nil
	})
	return n, err
}

// Clear drops every entry by recreating the bucket.
func (c *Cache) Clear(_ context.Context) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(c.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(c.bucket)
		return err
	})
}

// PurgeExpired deletes entries whose expiry has passed and returns how many.
func (c *Cache) PurgeExpired(_ context.Context) (int, error) {
	now := c.now().UnixNano()
	var expired [][]byte
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).ForEach(func(k, v []byte) error {
			if len(v) < 8 {
				expired = append(expired, append([]byte(nil), k...))
				return nil
			}
			if exp := int64(binary.BigEndian.Uint64(v[:8])); exp > 0 && now > exp {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
	})
	if err != nil || len(expired) == 0 {
		return 0, err
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return len(expired), err
}
