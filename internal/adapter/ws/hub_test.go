package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/sispromo/sispromo/internal/port/messagequeue"
)

func TestNewHub(t *testing.T) {
	hub := NewHub("", nil)
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub("", nil)
	hub.Broadcast(context.Background(), Message{Type: "test", Payload: []byte(`{"key":"value"}`)})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub("", nil)
	// A channel cannot be marshaled to JSON; should log, not panic.
	hub.BroadcastEvent(context.Background(), "test", make(chan int))
}

// identifyByQuery treats ?user=ID as a promoter and ?all=1 as a manager.
func identifyByQuery(r *http.Request) (Subscriber, bool) {
	q := r.URL.Query()
	if q.Get("all") == "1" {
		return Subscriber{UserID: "m1", SeeAll: true}, true
	}
	if u := q.Get("user"); u != "" {
		return Subscriber{UserID: u}, true
	}
	return Subscriber{}, false
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func waitForConns(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, hub.ConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubVisitEventAudience(t *testing.T) {
	hub := NewHub("", identifyByQuery)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer hub.Close()

	manager := dial(t, srv, "all=1")
	owner := dial(t, srv, "user=p1")
	other := dial(t, srv, "user=p2")
	waitForConns(t, hub, 3)

	hub.BroadcastEvent(context.Background(), "visit.updated", messagequeue.VisitEventPayload{VisitID: "v1", PromoterID: "p1", Status: 3})

	for name, c := range map[string]*websocket.Conn{"manager": manager, "owner": owner} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, data, err := c.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("%s read: %v", name, err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != "visit.updated" || !strings.Contains(string(msg.Payload), `"visit_id":"v1"`) {
			t.Fatalf("%s got unexpected message %s", name, data)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, data, err := other.Read(ctx); err == nil {
		t.Fatalf("other promoter should not receive the event, got %s", data)
	}
}

func TestHubRejectsUnidentified(t *testing.T) {
	hub := NewHub("", identifyByQuery)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
