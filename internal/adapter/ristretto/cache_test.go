package ristretto_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sispromo/sispromo/internal/adapter/ristretto"
	"github.com/sispromo/sispromo/internal/port/cache/cachetest"
)

func newCache(t *testing.T) *ristretto.Cache {
	t.Helper()
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCompliance(t *testing.T) {
	cachetest.RunComplianceTests(t, newCache(t))
}

func TestTTLExpiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), 50*time.Millisecond)
	c.Wait()
	if _, found, _ := c.Get(ctx, "short"); !found {
		t.Fatal("expected hit before expiry")
	}
	time.Sleep(1100 * time.Millisecond)
	if _, found, _ := c.Get(ctx, "short"); found {
		t.Fatal("expected miss after expiry")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "forever", []byte("v"), 0)
	_ = c.Set(ctx, "negative", []byte("v"), -time.Second)
	c.Wait()
	for _, k := range []string{"forever", "negative"} {
		if _, found, _ := c.Get(ctx, k); !found {
			t.Fatalf("expected %s to be stored without expiry", k)
		}
	}
}

func TestIndexStaysBoundedUnderChurn(t *testing.T) {
	c, err := ristretto.New(1 << 10)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	ctx := context.Background()

	// Distinct dashboard ranges, each cached briefly.
	for i := range 100_000 {
		key := fmt.Sprintf("dashboard:all:%d", i)
		_ = c.Set(ctx, key, []byte(`{"total_visits":0}`), time.Millisecond)
	}
	if n := c.Len(); n > 2048 {
		t.Fatalf("index holds %d keys after churn, want a bounded count", n)
	}
}

func TestSweepKeepsLiveKeys(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	for i := range 10 {
		_ = c.Set(ctx, fmt.Sprintf("stores:%d", i), []byte("v"), 0)
	}
	c.Wait()
	for i := range 5000 {
		_ = c.Set(ctx, fmt.Sprintf("dashboard:%d", i), []byte("v"), time.Millisecond)
	}
	c.Wait()

	n, err := c.DeletePrefix(ctx, "stores:")
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("DeletePrefix removed %d live keys, want 10", n)
	}
}
