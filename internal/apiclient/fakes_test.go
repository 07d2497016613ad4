package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sispromo/sispromo/internal/config"
)

// memStore is an in-memory Store that ignores TTLs.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *memStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	m.data = make(map[string][]byte)
	m.mu.Unlock()
	return nil
}

func (m *memStore) has(key string) bool {
	_, ok, _ := m.Get(context.Background(), key)
	return ok
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	srv    *httptest.Server
	client *Client
	store  *memStore
	tokens *MemoryTokenStore
	clock  *clock
	delays []time.Duration
}

func testConfig(baseURL string) config.Client {
	return config.Client{
		BaseURL:    baseURL + "/api/v1",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		DefaultTTL: 5 * time.Minute,
		TTLs: map[string]time.Duration{
			"/brands": 30 * time.Minute,
			"/states": 24 * time.Hour,
		},
	}
}

// newHarness starts h behind /api/v1 and a Client pointing at it. Retry
// sleeps are recorded instead of waited.
func newHarness(t *testing.T, h http.Handler, opts ...Option) *harness {
	t.Helper()
	srv := httptest.NewServer(h)
	hs := &harness{
		srv:    srv,
		store:  newMemStore(),
		tokens: NewMemoryTokenStore(),
		clock:  newClock(),
	}
	var mu sync.Mutex
	opts = append([]Option{
		WithClock(hs.clock.Now),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			hs.delays = append(hs.delays, d)
			mu.Unlock()
			return ctx.Err()
		}),
	}, opts...)
	c, err := New(testConfig(srv.URL), hs.tokens, NewResponseCache(hs.store), opts...)
	if err != nil {
		srv.Close()
		t.Fatal(err)
	}
	hs.client = c
	t.Cleanup(func() {
		_ = c.Close()
		srv.Close()
	})
	return hs
}
