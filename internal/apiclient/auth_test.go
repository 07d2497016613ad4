package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/sispromo/sispromo/internal/domain/user"
)

// authServer accepts "Bearer <valid>" on /api/v1/stores and trades the
// refresh token "r1" for the pair a2/r2 on /api/v1/auth/refresh.
type authServer struct {
	valid     string
	refreshes atomic.Int32
	// refreshStatus, when set, is returned instead of a new pair.
	refreshStatus int
	refreshDelay  time.Duration
}

func (s *authServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stores", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid or expired token"}`))
			return
		}
		writeItems(w, item{ID: "s1"})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshes.Add(1)
		time.Sleep(s.refreshDelay)
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var body user.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if s.refreshStatus != 0 || body.Refresh != "r1" {
			status := s.refreshStatus
			if status == 0 {
				status = http.StatusUnauthorized
			}
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(user.RefreshResponse{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 3600})
	})
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req user.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "ana" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(user.LoginResponse{
			AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 3600,
			User: user.User{ID: "u1", Username: "ana", Role: user.RolePromoter},
		})
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func seedTokens(t *testing.T, h *harness, access, refresh string) {
	t.Helper()
	if err := h.tokens.SetToken(&oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}); err != nil {
		t.Fatal(err)
	}
}

func TestRefreshOnUnauthorized(t *testing.T) {
	srv := &authServer{valid: "a2"}
	h := newHarness(t, srv.handler())
	seedTokens(t, h, "a1", "r1")

	var out []item
	if _, err := h.client.Get(context.Background(), "/stores", nil, &out, false); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Errorf("out = %v", out)
	}
	tok, _ := h.tokens.Token()
	if tok.AccessToken != "a2" || tok.RefreshToken != "r2" {
		t.Errorf("token = %+v", tok)
	}
	if !tok.Expiry.Equal(h.clock.Now().Add(time.Hour)) {
		t.Errorf("expiry = %v", tok.Expiry)
	}
	if got := srv.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d", got)
	}
}

func TestConcurrentRefreshIsCoalesced(t *testing.T) {
	srv := &authServer{valid: "a2", refreshDelay: 50 * time.Millisecond}
	h := newHarness(t, srv.handler())
	seedTokens(t, h, "a1", "r1")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.client.Get(context.Background(), "/stores", nil, nil, true)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if got := srv.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
}

func TestRejectedRefreshExpiresSession(t *testing.T) {
	srv := &authServer{valid: "a2"}
	var expired atomic.Int32
	h := newHarness(t, srv.handler(), WithSessionExpired(func() { expired.Add(1) }))
	seedTokens(t, h, "a1", "stale-refresh")
	_ = h.store.Set(context.Background(), Key("/brands", nil), []byte(`{}`), 0)

	_, err := h.client.Get(context.Background(), "/stores", nil, nil, false)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if tok, _ := h.tokens.Token(); tok != nil {
		t.Errorf("tokens not cleared: %+v", tok)
	}
	if h.store.len() != 0 {
		t.Error("cache not cleared")
	}
	if got := expired.Load(); got != 1 {
		t.Errorf("session expired hook calls = %d", got)
	}
	if len(h.delays) != 0 {
		t.Errorf("an expired session must not be retried, delays = %v", h.delays)
	}
}

func TestRefreshOutageKeepsSession(t *testing.T) {
	srv := &authServer{valid: "a2", refreshStatus: http.StatusServiceUnavailable}
	var expired atomic.Int32
	h := newHarness(t, srv.handler(), WithSessionExpired(func() { expired.Add(1) }))
	seedTokens(t, h, "a1", "r1")

	_, err := h.client.Get(context.Background(), "/stores", nil, nil, false)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if tok, _ := h.tokens.Token(); tok == nil || tok.RefreshToken != "r1" {
		t.Errorf("session dropped on refresh outage: %+v", tok)
	}
	if expired.Load() != 0 {
		t.Error("session expired hook must not run")
	}
}

func TestReplayDoesNotRefreshAgain(t *testing.T) {
	// refresh succeeds but the new token is still refused
	srv := &authServer{valid: "never"}
	h := newHarness(t, srv.handler())
	seedTokens(t, h, "a1", "r1")

	_, err := h.client.Get(context.Background(), "/stores", nil, nil, false)
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
	if got := srv.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
}

func TestUnauthorizedWithoutSession(t *testing.T) {
	srv := &authServer{valid: "a2"}
	h := newHarness(t, srv.handler())

	_, err := h.client.Get(context.Background(), "/stores", nil, nil, false)
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
	if srv.refreshes.Load() != 0 {
		t.Error("refresh attempted without a session")
	}
}

func TestLoginAndLogout(t *testing.T) {
	srv := &authServer{valid: "a1"}
	h := newHarness(t, srv.handler())
	ctx := context.Background()

	if _, err := h.client.Login(ctx, "ana", "wrong"); StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("bad login err = %v", err)
	}
	if h.client.LoggedIn() {
		t.Fatal("logged in after failed login")
	}

	u, err := h.client.Login(ctx, "ana", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "u1" || u.Role != user.RolePromoter {
		t.Errorf("user = %+v", u)
	}
	if !h.client.LoggedIn() {
		t.Fatal("expected session after login")
	}
	if _, err := h.client.Get(ctx, "/stores", nil, nil, false); err != nil {
		t.Fatal(err)
	}
	if h.store.len() == 0 {
		t.Fatal("expected cached stores")
	}

	if err := h.client.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if h.client.LoggedIn() || h.store.len() != 0 {
		t.Error("logout must clear tokens and cache")
	}
}

func TestIsAuthEndpoint(t *testing.T) {
	skip := isAuthEndpoint("/api/v1/")
	for p, want := range map[string]bool{
		"/api/v1/auth/login":   true,
		"/api/v1/auth/refresh": true,
		"/api/v1/auth/logout":  false,
		"/api/v1/stores":       false,
	} {
		if got := skip(p); got != want {
			t.Errorf("skip(%q) = %v, want %v", p, got, want)
		}
	}
}
