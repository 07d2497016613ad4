// Package apiclient is a Go client for the SisPromo REST API. Reads go
// through a two-level response cache with per-resource TTLs; network
// failures are retried with a fixed delay and, once retries run out,
// answered from stale cache when possible. An expired access token is
// renewed transparently with the stored refresh credential.
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
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/sispromo/sispromo/internal/config"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/resilience"
)

const maxResponseBytes = 10 << 20

// Meta describes where a read was served from.
type Meta struct {
	// Cached is true when no network call produced the data.
	Cached bool
	// Stale is true when the data came from cache after the network
	// failed; it may be older than its TTL.
	Stale bool
	// Age is the time since the data was fetched from the server.
	Age time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithBreaker short-circuits network calls while b is open; reads then go
// straight to the stale fallback.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) {
		b.IsFailure = retryable
		c.breaker = b
	}
}

// WithSessionExpired sets the hook run after a failed token refresh, once
// tokens and cache have been cleared.
func WithSessionExpired(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithTransport replaces the underlying HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithSleep replaces the wait between retries.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithClock replaces the time source used for cache freshness.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client talks to the API.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	base       http.RoundTripper
	auth       *authTransport
	tokens     TokenStore
	cache      *ResponseCache
	breaker    *resilience.Breaker
	onExpired  func()
	maxRetries int
	retryDelay time.Duration
	defaultTTL time.Duration
	ttls       []pathTTL
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time

	expireMu sync.Mutex
}

type pathTTL struct {
	prefix string
	ttl    time.Duration
}

// New creates a Client for cfg.BaseURL. cache may be nil to disable caching.
func New(cfg config.Client, tokens TokenStore, cache *ResponseCache, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	c := &Client{
		baseURL:    u,
		base:       http.DefaultTransport.(*http.Transport).Clone(),
		tokens:     tokens,
		cache:      cache,
		maxRetries: max(cfg.MaxRetries, 0),
		retryDelay: cfg.RetryDelay,
		defaultTTL: cfg.DefaultTTL,
		sleep:      sleepCtx,
		now:        time.Now,
	}
	for p, ttl := range cfg.TTLs {
		c.ttls = append(c.ttls, pathTTL{prefix: "/" + strings.Trim(p, "/"), ttl: ttl})
	}
	// longest prefix wins
	sort.Slice(c.ttls, func(i, j int) bool { return len(c.ttls[i].prefix) > len(c.ttls[j].prefix) })

	for _, o := range opts {
		o(c)
	}
	if c.cache != nil {
		c.cache.now = c.now
	}

	c.auth = &authTransport{
		base:       c.base,
		tokens:     tokens,
		refreshURL: c.baseURL.String() + "/auth/refresh",
		skip:       isAuthEndpoint(c.baseURL.Path),
		expired:    c.expire,
		now:        c.now,
	}
	c.http = &http.Client{Transport: c.auth, Timeout: cfg.Timeout}
	return c, nil
}

// Close releases idle connections and the cache.
func (c *Client) Close() error {
	if t, ok := c.base.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return c.cache.Close()
}

// TTL returns the freshness window for a resource path: the longest
// configured prefix match, else the default.
func (c *Client) TTL(path string) time.Duration {
	for _, p := range c.ttls {
		if path == p.prefix || strings.HasPrefix(path, p.prefix+"/") {
			return p.ttl
		}
	}
	return c.defaultTTL
}

// Get fetches path with params into out. Unless force is set, a fresh
// cached copy is returned without touching the network.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any, force bool) (Meta, error) {
	key := Key(path, params)
	if !force {
		if e, ok := c.cache.get(ctx, key); ok && e.fresh(c.now()) {
			return Meta{Cached: true, Age: c.now().Sub(e.Timestamp)}, decode(e.Data, out)
		}
	}

	data, err := c.send(ctx, http.MethodGet, path, params, nil)
	if err == nil {
		c.cache.put(ctx, key, data, c.TTL(path))
		return Meta{}, decode(data, out)
	}

	if errors.Is(err, ErrRetriesExhausted) || errors.Is(err, resilience.ErrCircuitOpen) {
		if e, ok := c.cache.get(ctx, key); ok {
			slog.WarnContext(ctx, "serving stale response", "path", path, "age", c.now().Sub(e.Timestamp), "error", err)
			return Meta{Cached: true, Stale: true, Age: c.now().Sub(e.Timestamp)}, decode(e.Data, out)
		}
	}
	return Meta{}, err
}

// Post sends body to path and decodes the answer into out (may be nil).
// Cached reads of the affected resources are invalidated on success.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.write(ctx, http.MethodPost, path, body, out)
}

// Patch sends a partial update.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.write(ctx, http.MethodPatch, path, body, out)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.write(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) write(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	// One key for every attempt so the server replays instead of repeating.
	ctx = withIdempotencyKey(ctx, uuid.NewString())
	data, err := c.send(ctx, method, path, nil, payload)
	if err != nil {
		return err
	}
	for _, p := range affected(path) {
		if err := c.cache.Invalidate(ctx, p); err != nil {
			slog.WarnContext(ctx, "cache invalidation failed", "path", p, "error", err)
		}
	}
	return decode(data, out)
}

// Invalidate drops every cached variant of path.
func (c *Client) Invalidate(ctx context.Context, path string) error {
	return c.cache.Invalidate(ctx, path)
}

// ClearCache drops every cached response.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

// Login authenticates and stores the token pair.
func (c *Client) Login(ctx context.Context, login, password string) (*user.User, error) {
	req := user.LoginRequest{Password: password}
	if strings.Contains(login, "@") {
		req.Email = login
	} else {
		req.Username = login
	}
	payload, _ := json.Marshal(req)
	data, err := c.send(ctx, http.MethodPost, "/auth/login", nil, payload)
	if err != nil {
		return nil, err
	}
	var resp user.LoginResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if err := c.tokens.SetToken(tok); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	// a different account must not see the previous one's cached data
	if err := c.cache.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "clear cache after login", "error", err)
	}
	return &resp.User, nil
}

// Logout ends the session on the server and forgets local state. Local
// state is cleared even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	tok, err := c.tokens.Token()
	if err != nil {
		return err
	}
	var serverErr error
	if tok != nil {
		_, serverErr = c.attempt(ctx, http.MethodPost, "/auth/logout", nil, nil)
	}
	return errors.Join(serverErr, c.tokens.Clear(), c.cache.Clear(ctx))
}

// LoggedIn reports whether a session token is stored.
func (c *Client) LoggedIn() bool {
	tok, err := c.tokens.Token()
	return err == nil && tok != nil && tok.AccessToken != ""
}

// expire forgets the session after a failed refresh. The hook runs only
// for the caller that actually dropped the tokens.
func (c *Client) expire(ctx context.Context) {
	c.expireMu.Lock()
	defer c.expireMu.Unlock()
	tok, _ := c.tokens.Token()
	if err := c.tokens.Clear(); err != nil {
		slog.WarnContext(ctx, "clear tokens", "error", err)
	}
	if err := c.cache.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "clear cache", "error", err)
	}
	if tok != nil && c.onExpired != nil {
		c.onExpired()
	}
}

// send performs the request, retrying network-level failures up to
// maxRetries times with a fixed delay.
func (c *Client) send(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			slog.DebugContext(ctx, "retrying request", "method", method, "path", path, "attempt", attempt, "error", lastErr)
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
		}
		data, err := c.guarded(ctx, method, path, params, body)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, resilience.ErrCircuitOpen) || !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%s %s: %w: %w", method, path, ErrRetriesExhausted, lastErr)
}

func (c *Client) guarded(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	if c.breaker == nil {
		return c.attempt(ctx, method, path, params, body)
	}
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.attempt(ctx, method, path, params, body)
		return err
	})
	return data, err
}

// attempt performs one HTTP exchange.
func (c *Client) attempt(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	u := c.baseURL.String() + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := idempotencyKey(ctx); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newHTTPError(resp.StatusCode, data)
	}
	return data, nil
}

// affected lists the cached resources a write to path makes outdated.
func affected(path string) []string {
	root := path
	if i := strings.IndexByte(strings.TrimPrefix(path, "/"), '/'); i >= 0 {
		root = path[:i+1]
	}
	out := []string{root}
	switch root {
	case "/stores":
		out = append(out, "/brands", "/visit-prices", "/dashboard")
	case "/brands":
		out = append(out, "/visit-prices", "/promoter-brands", "/dashboard")
	case "/visits", "/visit-prices":
		out = append(out, "/dashboard")
	case "/promoters", "/users":
		out = append(out, "/promoters", "/users", "/promoter-brands")
	}
	return out
}

type idempotencyCtxKey struct{}

func withIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyCtxKey{}, key)
}

func idempotencyKey(ctx context.Context) string {
	k, _ := ctx.Value(idempotencyCtxKey{}).(string)
	return k
}

func decode(data []byte, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
