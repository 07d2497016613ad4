package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sispromo/sispromo/internal/port/messagequeue"
)

// memTiered is a TieredCache with separate local and shared maps.
type memTiered struct {
	mu     sync.Mutex
	local  map[string][]byte
	shared map[string][]byte
	ttls   map[string]time.Duration
}

func newMemTiered() *memTiered {
	return &memTiered{local: map[string][]byte{}, shared: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memTiered) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.local[key]; ok {
		return v, true, nil
	}
	if v, ok := m.shared[key]; ok {
		m.local[key] = v
		return v, true, nil
	}
	return nil, false, nil
}

func (m *memTiered) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local[key] = value
	m.shared[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memTiered) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.local, key)
	delete(m.shared, key)
	return nil
}

func deletePrefix(mm map[string][]byte, prefix string) int {
	n := 0
	for k := range mm {
		if strings.HasPrefix(k, prefix) {
			delete(mm, k)
			n++
		}
	}
	return n
}

func (m *memTiered) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deletePrefix(m.local, prefix)
	return deletePrefix(m.shared, prefix), nil
}

func (m *memTiered) DeleteLocal(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.local, key)
	return nil
}

func (m *memTiered) DeleteLocalPrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deletePrefix(m.local, prefix), nil
}

func (m *memTiered) hasLocal(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.local[key]
	return ok
}

type published struct {
	subject string
	data    []byte
}

// mockQueue records published messages.
type mockQueue struct {
	mu   sync.Mutex
	msgs []published
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, published{subject: subject, data: data})
	return nil
}

func (q *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.msgs))
	for i, m := range q.msgs {
		out[i] = m.subject
	}
	return out
}

type broadcastEvent struct {
	eventType string
	payload   any
}

// mockHub records broadcast events.
type mockHub struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (h *mockHub) BroadcastEvent(_ context.Context, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, broadcastEvent{eventType: eventType, payload: payload})
}
