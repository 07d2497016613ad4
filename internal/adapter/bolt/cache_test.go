package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sispromo/sispromo/internal/port/cache/cachetest"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCompliance(t *testing.T) {
	cachetest.RunComplianceTests(t, openTemp(t))
}

func TestExpiry(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after expiry")
	}
	if _, ok, _ := c.Get(ctx, "forever"); !ok {
		t.Fatal("zero ttl should never expire")
	}

	n, err := c.PurgeExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "/stores?", []byte(`[1,2]`), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	v, ok, err := c.Get(ctx, "/stores?")
	if err != nil || !ok || string(v) != `[1,2]` {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestDeletePrefixLeavesNeighbours(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	for _, k := range []string{"/visits?a=1", "/visits?a=2", "/visits/report?x=1", "/visitsx", "/stores?"} {
		_ = c.Set(ctx, k, []byte("v"), 0)
	}
	n, err := c.DeletePrefix(ctx, "/visits?")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	for _, k := range []string{"/visits/report?x=1", "/visitsx", "/stores?"} {
		if _, ok, _ := c.Get(ctx, k); !ok {
			t.Fatalf("%s should survive", k)
		}
	}
}
