package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 15 * time.Second

// replayKey marks a request that is already the replay after a refresh.
// Such a request never triggers another refresh.
type replayKey struct{}

func isReplay(ctx context.Context) bool {
	v, _ := ctx.Value(replayKey{}).(bool)
	return v
}

// errRefreshRejected wraps a refresh the server answered with an error.
type errRefreshRejected struct{ err error }

func (e *errRefreshRejected) Error() string { return "refresh rejected: " + e.err.Error() }
func (e *errRefreshRejected) Unwrap() error { return e.err }

// authTransport attaches the bearer token and renews it on 401. Concurrent
// 401s share one refresh call; the original request is then replayed once
// with the new token.
type authTransport struct {
	base       http.RoundTripper
	tokens     TokenStore
	refreshURL string
	// unauthenticated paths (login, refresh) never carry a token and never
	// trigger a refresh.
	skip    func(path string) bool
	expired func(ctx context.Context)
	now     func() time.Time

	group singleflight.Group
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.skip(req.URL.Path) {
		return t.base.RoundTrip(req)
	}
	tok, err := t.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	out := req.Clone(req.Context())
	sent := ""
	if tok != nil && tok.AccessToken != "" {
		sent = tok.AccessToken
		out.Header.Set("Authorization", "Bearer "+sent)
	}
	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || tok == nil || isReplay(req.Context()) {
		return resp, err
	}
	drainAndClose(resp.Body)

	fresh, err := t.refresh(req.Context(), sent)
	if err != nil {
		var rejected *errRefreshRejected
		if errors.As(err, &rejected) || errors.Is(err, ErrNotLoggedIn) {
			slog.WarnContext(req.Context(), "session expired", "error", err)
			t.expired(req.Context())
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		// transport trouble while refreshing: keep the session, let the caller retry
		return nil, err
	}

	replay := req.Clone(context.WithValue(req.Context(), replayKey{}, true))
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("request body cannot be replayed after token refresh")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay body: %w", err)
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+fresh.AccessToken)
	return t.base.RoundTrip(replay)
}

// refresh renews the token pair. failed is the access token the server
// rejected; if the store already holds a different one, another caller
// has refreshed in the meantime and that token is reused.
func (t *authTransport) refresh(ctx context.Context, failed string) (*oauth2.Token, error) {
	v, err, shared := t.group.Do("refresh", func() (any, error) {
		cur, err := t.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
		if cur == nil || cur.RefreshToken == "" {
			return nil, ErrNotLoggedIn
		}
		if cur.AccessToken != "" && cur.AccessToken != failed {
			return cur, nil
		}

		// One caller giving up must not fail the refresh for everyone waiting.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		body, _ := json.Marshal(map[string]string{"refresh": cur.RefreshToken})
		req, err := http.NewRequestWithContext(rctx, http.MethodPost, t.refreshURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		defer drainAndClose(resp.Body)
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			herr := newHTTPError(resp.StatusCode, data)
			if retryable(herr) {
				return nil, fmt.Errorf("refresh: %w", herr)
			}
			return nil, &errRefreshRejected{err: herr}
		}

		var pair struct {
			Access    string `json:"access"`
			Refresh   string `json:"refresh"`
			ExpiresIn int    `json:"expires_in"`
		}
		if err := json.Unmarshal(data, &pair); err != nil || pair.Access == "" {
			return nil, &errRefreshRejected{err: errors.New("malformed refresh response")}
		}
		next := &oauth2.Token{
			AccessToken:  pair.Access,
			RefreshToken: pair.Refresh,
			TokenType:    "Bearer",
			Expiry:       t.now().Add(time.Duration(pair.ExpiresIn) * time.Second),
		}
		if next.RefreshToken == "" {
			next.RefreshToken = cur.RefreshToken
		}
		if err := t.tokens.SetToken(next); err != nil {
			return nil, fmt.Errorf("store token: %w", err)
		}
		slog.DebugContext(ctx, "access token refreshed")
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "joined in-flight token refresh")
	}
	return v.(*oauth2.Token), nil
}

// isAuthEndpoint reports whether path is one of the unauthenticated auth
// endpoints under the API base path.
func isAuthEndpoint(basePath string) func(string) bool {
	login := strings.TrimSuffix(basePath, "/") + "/auth/login"
	refresh := strings.TrimSuffix(basePath, "/") + "/auth/refresh"
	return func(p string) bool { return p == login || p == refresh }
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBytes))
	_ = body.Close()
}
