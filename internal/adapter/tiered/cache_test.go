package tiered_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sispromo/sispromo/internal/adapter/tiered"
	"github.com/sispromo/sispromo/internal/port/cache/cachetest"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	data   map[string][]byte
	getErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memCache) Clear(context.Context) error {
	m.data = make(map[string][]byte)
	return nil
}

func TestCompliance(t *testing.T) {
	cachetest.RunComplianceTests(t, tiered.New(newMemCache(), newMemCache(), time.Minute))
}

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	l1.data["key1"] = []byte("val1")

	val, found, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L1 hit")
	}
	if string(val) != "val1" {
		t.Fatalf("expected val1, got %s", val)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	l2.data["key2"] = []byte("val2")

	val, found, err := c.Get(ctx, "key2")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != "val2" {
		t.Fatalf("expected L2 hit val2, got %q found=%v", val, found)
	}

	if l1Val, ok := l1.data["key2"]; !ok || string(l1Val) != "val2" {
		t.Fatalf("expected L1 backfill, got %q", l1Val)
	}
}

func TestTiered_L2ErrorIsMiss(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	l2.getErr = errors.New("nats down")
	c := tiered.New(l1, l2, time.Minute)

	_, found, err := c.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("L2 failure should degrade to miss, got %v", err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_SetAndDeleteBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "key3", []byte("val3"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["key3"]; !ok {
		t.Fatal("expected key3 in L1")
	}
	if _, ok := l2.data["key3"]; !ok {
		t.Fatal("expected key3 in L2")
	}

	if err := c.Delete(ctx, "key3"); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["key3"]; ok {
		t.Fatal("expected key3 deleted from L1")
	}
	if _, ok := l2.data["key3"]; ok {
		t.Fatal("expected key3 deleted from L2")
	}
}

func TestTiered_DeleteLocalKeepsL2(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, time.Minute)
	ctx := context.Background()

	l1.data["store:1"] = []byte("a")
	l1.data["store:2"] = []byte("b")
	l2.data["store:1"] = []byte("a")

	if err := c.DeleteLocal(ctx, "store:1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := l2.data["store:1"]; !ok {
		t.Fatal("DeleteLocal must not touch L2")
	}
	if n, _ := c.DeleteLocalPrefix(ctx, "store:"); n != 1 {
		t.Fatalf("expected 1 local prefix deletion, got %d", n)
	}
	if len(l1.data) != 0 {
		t.Fatalf("expected empty L1, got %v", l1.data)
	}
}

func TestTiered_DeletePrefixBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, time.Minute)
	ctx := context.Background()

	for _, k := range []string{"visit:a", "visit:b", "brand:a"} {
		l1.data[k] = []byte("x")
		l2.data[k] = []byte("x")
	}
	n, err := c.DeletePrefix(ctx, "visit:")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	if len(l1.data) != 1 || len(l2.data) != 1 {
		t.Fatalf("expected only brand:a left, l1=%v l2=%v", l1.data, l2.data)
	}
}
