// Package cachetest provides a behavioral test suite shared by every
// cache.Cache implementation.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/sispromo/sispromo/internal/port/cache"
)

// Settler is implemented by caches whose writes become visible
// asynchronously. The suite calls Wait after every write.
type Settler interface {
	Wait()
}

// RunComplianceTests runs the standard compliance test suite against any Cache implementation.
func RunComplianceTests(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()
	settle := func() {
		if s, ok := c.(Settler); ok {
			s.Wait()
		}
	}

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "compliance-key", []byte("compliance-val"), time.Minute); err != nil {
			t.Fatal(err)
		}
		settle()
		val, found, err := c.Get(ctx, "compliance-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "compliance-val" {
			t.Fatalf("expected compliance-val, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "nonexistent-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "del-key", []byte("del-val"), time.Minute)
		settle()
		if err := c.Delete(ctx, "del-key"); err != nil {
			t.Fatal(err)
		}
		settle()
		_, found, err := c.Get(ctx, "del-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "never-existed"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "ow-key", []byte("v1"), time.Minute)
		settle()
		_ = c.Set(ctx, "ow-key", []byte("v2"), time.Minute)
		settle()
		val, found, err := c.Get(ctx, "ow-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})

	if p, ok := c.(cache.PrefixDeleter); ok {
		t.Run("DeletePrefix", func(t *testing.T) {
			_ = c.Set(ctx, "/stores?page=1", []byte("a"), time.Minute)
			_ = c.Set(ctx, "/stores?page=2", []byte("b"), time.Minute)
			_ = c.Set(ctx, "/brands", []byte("c"), time.Minute)
			settle()
			if _, err := p.DeletePrefix(ctx, "/stores"); err != nil {
				t.Fatal(err)
			}
			settle()
			for _, k := range []string{"/stores?page=1", "/stores?page=2"} {
				if _, found, _ := c.Get(ctx, k); found {
					t.Fatalf("expected %s removed by prefix delete", k)
				}
			}
			if _, found, _ := c.Get(ctx, "/brands"); !found {
				t.Fatal("prefix delete removed an unrelated key")
			}
		})
	}

	if cl, ok := c.(cache.Clearer); ok {
		t.Run("Clear", func(t *testing.T) {
			_ = c.Set(ctx, "clear-key", []byte("v"), time.Minute)
			settle()
			if err := cl.Clear(ctx); err != nil {
				t.Fatal(err)
			}
			settle()
			if _, found, _ := c.Get(ctx, "clear-key"); found {
				t.Fatal("expected miss after Clear")
			}
		})
	}
}
