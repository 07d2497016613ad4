package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sispromo/sispromo/internal/config"
)

// maxBuckets caps tracked client IPs.
const maxBuckets = 100_000

// RateLimiter is per-IP token bucket rate limiting middleware. Login
// brute-forcing is additionally bounded by the account lockout.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a rate limiter with the given sustained rate
// (requests per second) and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// NewRateLimiterFromConfig creates a rate limiter from the rate section.
func NewRateLimiterFromConfig(cfg config.Rate) *RateLimiter {
	return NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
}

// Handler returns HTTP middleware that enforces per-IP rate limiting.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, wait, ok := rl.allow(clientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow takes one token for ip. It returns the tokens left, the seconds
// until the next token, and whether the request may proceed.
func (rl *RateLimiter) allow(ip string) (remaining int, wait float64, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[ip]
	if !exists {
		if len(rl.buckets) >= maxBuckets {
			return 0, 1 / rl.rate, false
		}
		b = &bucket{tokens: float64(rl.burst), seen: now}
		rl.buckets[ip] = b
	} else {
		b.tokens = math.Min(float64(rl.burst), b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
		b.seen = now
	}

	if b.tokens < 1 {
		return 0, (1 - b.tokens) / rl.rate, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// StartCleanup drops buckets idle longer than cfg.MaxIdleTime every
// cfg.CleanupInterval until ctx is cancelled.
func (rl *RateLimiter) StartCleanup(ctx context.Context, cfg config.Rate) {
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.cleanup(cfg.MaxIdleTime); n > 0 {
					slog.Debug("rate limiter buckets evicted", "count", n)
				}
			}
		}
	}()
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	n := 0
	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
			n++
		}
	}
	return n
}

// Len returns the number of tracked IP buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// clientIP uses RemoteAddr only; forwarding headers are client-controlled.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
