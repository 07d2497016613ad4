package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sispromo/sispromo/internal/resilience"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func writeItems(w http.ResponseWriter, items ...item) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func TestGetServesFreshCache(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stores", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeItems(w, item{ID: "s1", Name: "Loja Centro"})
	})
	h := newHarness(t, mux)
	ctx := context.Background()

	var first []item
	meta, err := h.client.Get(ctx, "/stores", nil, &first, false)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Cached || len(first) != 1 {
		t.Fatalf("first read: meta=%+v items=%v", meta, first)
	}

	h.clock.Advance(time.Minute)
	var second []item
	meta, err = h.client.Get(ctx, "/stores", nil, &second, false)
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Cached || meta.Stale || meta.Age != time.Minute {
		t.Errorf("second read meta = %+v", meta)
	}
	if second[0].Name != "Loja Centro" {
		t.Errorf("cached item = %+v", second[0])
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}

	if _, err := h.client.Get(ctx, "/stores", nil, &second, true); err != nil {
		t.Fatal(err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("forced read did not reach server, hits = %d", got)
	}
}

func TestGetRefetchesAfterTTL(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/brands", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeItems(w)
	})
	h := newHarness(t, mux)
	ctx := context.Background()

	var out []item
	for _, step := range []time.Duration{0, 29 * time.Minute, 2 * time.Minute} {
		h.clock.Advance(step)
		if _, err := h.client.Get(ctx, "/brands", nil, &out, false); err != nil {
			t.Fatal(err)
		}
	}
	// 30 minute TTL: the read at 29m is cached, the one at 31m is not
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestGetRetriesWithFixedDelay(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/visits", func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		writeItems(w, item{ID: "v1"})
	})
	h := newHarness(t, mux)

	var out []item
	meta, err := h.client.Get(context.Background(), "/visits", nil, &out, false)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Stale || len(out) != 1 {
		t.Errorf("meta=%+v out=%v", meta, out)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("hits = %d, want 3", got)
	}
	if len(h.delays) != 2 || h.delays[0] != 2*time.Second || h.delays[1] != 2*time.Second {
		t.Errorf("delays = %v, want two 2s waits", h.delays)
	}
}

func TestGetStaleFallbackAfterRetries(t *testing.T) {
	var hits atomic.Int32
	var down atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stores", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeItems(w, item{ID: "s1"})
	})
	h := newHarness(t, mux)
	ctx := context.Background()

	var out []item
	if _, err := h.client.Get(ctx, "/stores", nil, &out, false); err != nil {
		t.Fatal(err)
	}
	down.Store(true)
	h.clock.Advance(time.Hour)

	out = nil
	meta, err := h.client.Get(ctx, "/stores", nil, &out, false)
	if err != nil {
		t.Fatalf("expected stale data, got %v", err)
	}
	if !meta.Stale || !meta.Cached || meta.Age != time.Hour {
		t.Errorf("meta = %+v", meta)
	}
	if len(out) != 1 || out[0].ID != "s1" {
		t.Errorf("stale data = %v", out)
	}
	// one priming read, then 1 + 3 retries
	if got := hits.Load(); got != 5 {
		t.Errorf("hits = %d, want 5", got)
	}
}

func TestGetExhaustedWithoutCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stores", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	h := newHarness(t, mux)

	_, err := h.client.Get(context.Background(), "/stores", nil, nil, false)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if StatusCode(err) != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", StatusCode(err))
	}
}

func TestClientErrorIsFinal(t *testing.T) {
	var hits atomic.Int32
	var gone atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stores/s1", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		if gone.Load() {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"store not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(item{ID: "s1"})
	})
	h := newHarness(t, mux)
	ctx := context.Background()

	var out item
	if _, err := h.client.Get(ctx, "/stores/s1", nil, &out, false); err != nil {
		t.Fatal(err)
	}
	gone.Store(true)
	h.clock.Advance(time.Hour)

	_, err := h.client.Get(ctx, "/stores/s1", nil, &out, false)
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound || he.Message != "store not found" {
		t.Fatalf("err = %v, want 404 store not found", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("hits = %d, a 404 must not be retried", got)
	}
	if len(h.delays) != 0 {
		t.Errorf("delays = %v", h.delays)
	}
}

func TestCircuitOpenServesStale(t *testing.T) {
	var hits atomic.Int32
	var down atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/states", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		if down.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeItems(w, item{ID: "SP"})
	})
	h := newHarness(t, mux, WithBreaker(resilience.NewBreaker(1, time.Hour)))
	ctx := context.Background()

	var out []item
	if _, err := h.client.Get(ctx, "/states", nil, &out, false); err != nil {
		t.Fatal(err)
	}
	down.Store(true)

	meta, err := h.client.Get(ctx, "/states", nil, &out, true)
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Stale {
		t.Errorf("meta = %+v, want stale", meta)
	}
	// the first failure opens the circuit; no further calls reach the server
	if got := hits.Load(); got != 2 {
		t.Errorf("hits = %d, want 2", got)
	}
}

func TestKeyCanonicalizesParams(t *testing.T) {
	a := url.Values{}
	a.Set("store_id", "s1")
	a.Set("brand_id", "b1")
	b := url.Values{"brand_id": {"b1"}, "store_id": {"s1"}}

	if Key("/visits", a) != Key("/visits", b) {
		t.Errorf("keys differ: %q vs %q", Key("/visits", a), Key("/visits", b))
	}
	if got := Key("/visits", a); got != "/visits?brand_id=b1&store_id=s1" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("/stores", nil); got != "/stores?" {
		t.Errorf("Key without params = %q", got)
	}
}

func TestTTLLongestPrefix(t *testing.T) {
	h := newHarness(t, http.NotFoundHandler())
	tests := []struct {
		path string
		want time.Duration
	}{
		{"/brands", 30 * time.Minute},
		{"/brands/b1", 30 * time.Minute},
		{"/brandsx", 5 * time.Minute},
		{"/states", 24 * time.Hour},
		{"/visits", 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := h.client.TTL(tt.path); got != tt.want {
			t.Errorf("TTL(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWriteInvalidatesRelatedReads(t *testing.T) {
	var (
		mu       sync.Mutex
		keys     []string
		attempts atomic.Int32
	)
	mux := http.NewServeMux()
	for _, p := range []string{"/stores", "/brands", "/visits", "/dashboard"} {
		mux.HandleFunc("GET /api/v1"+p, func(w http.ResponseWriter, _ *http.Request) { writeItems(w) })
	}
	mux.HandleFunc("POST /api/v1/stores", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(item{ID: "s2", Name: "Nova"})
	})
	h := newHarness(t, mux)
	ctx := context.Background()

	for _, p := range []string{"/stores", "/brands", "/visits", "/dashboard"} {
		if _, err := h.client.Get(ctx, p, nil, nil, false); err != nil {
			t.Fatal(err)
		}
	}

	var created item
	if err := h.client.Post(ctx, "/stores", map[string]string{"name": "Nova"}, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != "s2" {
		t.Errorf("created = %+v", created)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(keys) != 2 || keys[0] == "" || keys[0] != keys[1] {
		t.Errorf("idempotency keys = %q, want one key reused across attempts", keys)
	}
	for _, p := range []string{"/stores", "/brands", "/dashboard"} {
		if h.store.has(Key(p, nil)) {
			t.Errorf("%s still cached after store write", p)
		}
	}
	if !h.store.has(Key("/visits", nil)) {
		t.Error("/visits should stay cached")
	}
}

func TestAffected(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/visits/v1/status", []string{"/visits", "/dashboard"}},
		{"/brands/b1", []string{"/brands", "/visit-prices", "/promoter-brands", "/dashboard"}},
		{"/states", []string{"/states"}},
	}
	for _, tt := range tests {
		got := affected(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("affected(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("affected(%q) = %v, want %v", tt.path, got, tt.want)
				break
			}
		}
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	cfg := testConfig("")
	cfg.BaseURL = "not a url"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestGetWithoutCache(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stores", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeItems(w)
	})
	srvH := newHarness(t, mux)
	c, err := New(testConfig(srvH.srv.URL), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	for range 2 {
		if _, err := c.Get(context.Background(), "/stores", nil, nil, false); err != nil {
			t.Fatal(err)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("hits = %d, want 2 without a cache", got)
	}
}
