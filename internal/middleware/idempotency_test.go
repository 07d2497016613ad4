package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/middleware"
)

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func countingHandler(status int) (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, calls)
	}), &calls
}

func postWithKey(h http.Handler, key string, u *user.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/visits", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if u != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), u))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	inner, calls := countingHandler(http.StatusCreated)
	h := middleware.Idempotency(newMemCache(), time.Hour)(inner)
	u := &user.User{ID: "p1"}

	first := postWithKey(h, "abc", u)
	second := postWithKey(h, "abc", u)

	if *calls != 1 {
		t.Fatalf("handler called %d times, want 1", *calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %q, want %d %q", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("replayed responses should be marked")
	}
}

func TestIdempotency_ScopedPerUser(t *testing.T) {
	inner, calls := countingHandler(http.StatusCreated)
	h := middleware.Idempotency(newMemCache(), time.Hour)(inner)

	postWithKey(h, "abc", &user.User{ID: "p1"})
	postWithKey(h, "abc", &user.User{ID: "p2"})
	if *calls != 2 {
		t.Errorf("same key from different users must not collide, calls = %d", *calls)
	}
}

func TestIdempotency_ErrorsNotStored(t *testing.T) {
	inner, calls := countingHandler(http.StatusBadRequest)
	h := middleware.Idempotency(newMemCache(), time.Hour)(inner)

	postWithKey(h, "k", nil)
	postWithKey(h, "k", nil)
	if *calls != 2 {
		t.Errorf("failed requests should be retryable, calls = %d", *calls)
	}
}

func TestIdempotency_SkipsWithoutKeyAndOnGet(t *testing.T) {
	inner, calls := countingHandler(http.StatusOK)
	h := middleware.Idempotency(newMemCache(), time.Hour)(inner)

	postWithKey(h, "", nil)
	postWithKey(h, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/visits", http.NoBody)
	req.Header.Set("Idempotency-Key", "g")
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if *calls != 4 {
		t.Errorf("calls = %d, want 4", *calls)
	}
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	inner, _ := countingHandler(http.StatusOK)
	h := middleware.Idempotency(newMemCache(), time.Hour)(inner)
	rec := postWithKey(h, strings.Repeat("k", 300), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
