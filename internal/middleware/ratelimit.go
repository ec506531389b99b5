package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/larder/internal/auth"
)

// RealIP returns the client address. Proxy headers win over RemoteAddr; for
// X-Forwarded-For the first hop is the client.
func RealIP(r *http.Request) string {
	for _, h := range []string{"CF-Connecting-IP", "X-Forwarded-For"} {
		if v := r.Header.Get(h); v != "" {
			first, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// hits is a sliding log of request times for one key, oldest first.
type hits struct {
	at     []time.Time
	window time.Duration
}

// prune drops hits that have slid out of the window ending at now.
func (h *hits) prune(now time.Time) {
	cut := now.Add(-h.window)
	i := 0
	for i < len(h.at) && !h.at[i].After(cut) {
		i++
	}
	h.at = h.at[i:]
}

// RateLimiter counts requests per key over a sliding window. Denied
// requests are not recorded, so a client that keeps retrying is let back in
// as soon as its oldest counted request ages out.
type RateLimiter struct {
	mu   sync.Mutex
	keys map[string]*hits
	now  func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{keys: make(map[string]*hits), now: time.Now}
}

// Allow records a request for key if fewer than limit fall inside window.
// When it refuses, wait is how long until a slot frees up.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) (ok bool, wait time.Duration) {
	if limit <= 0 {
		return false, window
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	h := rl.keys[key]
	if h == nil {
		h = &hits{}
		rl.keys[key] = h
	}
	h.window = max(h.window, window)
	h.prune(now)

	inWindow := h.at
	cut := now.Add(-window)
	for len(inWindow) > 0 && !inWindow[0].After(cut) {
		inWindow = inWindow[1:]
	}
	if len(inWindow) >= limit {
		return false, inWindow[len(inWindow)-limit].Add(window).Sub(now)
	}
	h.at = append(h.at, now)
	return true, 0
}

// Cleanup forgets keys with no requests left in their window.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, h := range rl.keys {
		if h.prune(now); len(h.at) == 0 {
			delete(rl.keys, key)
		}
	}
}

// UserKey keys rate limits by the authenticated user, falling back to the
// client address.
func UserKey(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(id.UserID, 10)
	}
	return "ip:" + RealIP(r)
}

// RateLimit returns middleware that allows limit requests per key within
// window and answers the rest with 429 and a Retry-After in whole seconds.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Allow(keyFunc(r), limit, window)
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
