package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/auth"
)

// clock is a settable time source for the limiter.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*RateLimiter, *clock) {
	c := &clock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter()
	rl.now = c.now
	return rl, c
}

func TestRateLimiterAllow(t *testing.T) {
	rl, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("key", 5, time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, wait := rl.Allow("key", 5, time.Minute)
	if ok {
		t.Error("6th request should be denied")
	}
	if wait != time.Minute {
		t.Errorf("wait = %v, want 1m", wait)
	}
	if ok, _ := rl.Allow("other", 5, time.Minute); !ok {
		t.Error("keys should be counted separately")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl, c := newTestLimiter()

	// Hits at 0s, 20s and 40s against 3 per minute.
	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("key", 3, time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
		c.advance(20 * time.Second)
	}

	// At 60s the first hit has just aged out, so one slot is free.
	if ok, _ := rl.Allow("key", 3, time.Minute); !ok {
		t.Fatal("slot should free once the oldest hit leaves the window")
	}

	// 20s, 40s and 60s are still counted; the 20s hit leaves at 80s.
	c.advance(5 * time.Second)
	ok, wait := rl.Allow("key", 3, time.Minute)
	if ok {
		t.Fatal("should be denied with a full window")
	}
	if wait != 15*time.Second {
		t.Errorf("wait = %v, want 15s", wait)
	}

	// Denied requests do not push the next slot further out.
	c.advance(wait)
	if ok, _ := rl.Allow("key", 3, time.Minute); !ok {
		t.Error("should be allowed after waiting the reported time")
	}
}

func TestRateLimiterZeroLimit(t *testing.T) {
	rl, _ := newTestLimiter()
	if ok, wait := rl.Allow("key", 0, time.Minute); ok || wait != time.Minute {
		t.Errorf("Allow = %v, %v; want denied for 1m", ok, wait)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, c := newTestLimiter()

	rl.Allow("expired", 5, 10*time.Second)
	c.advance(15 * time.Second)
	rl.Allow("active", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.keys["expired"]; ok {
		t.Error("expired key should have been cleaned up")
	}
	if h, ok := rl.keys["active"]; !ok || len(h.at) != 1 {
		t.Error("active key should still exist")
	}
}

func TestRateLimiterCleanupUsesWidestWindow(t *testing.T) {
	rl, c := newTestLimiter()

	// One key shared by a short and a long limit keeps the long history.
	rl.Allow("user:1", 10, time.Minute)
	rl.Allow("user:1", 10, time.Second)
	c.advance(30 * time.Second)
	rl.Cleanup()

	rl.mu.Lock()
	h, ok := rl.keys["user:1"]
	rl.mu.Unlock()
	if !ok || len(h.at) != 2 {
		t.Fatalf("key pruned too early: %+v", h)
	}
	if ok, _ := rl.Allow("user:1", 2, time.Minute); ok {
		t.Error("minute limit should still count both hits")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	keyFunc := func(r *http.Request) string { return "test" }

	handler := RateLimit(rl, keyFunc, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First 2 requests should pass
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	// 3rd request should be rate limited
	req := httptest.NewRequest("POST", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	rl, c := newTestLimiter()
	handler := RateLimit(rl, UserKey, 1, 30*time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		if i == 1 {
			c.advance(10500 * time.Millisecond)
		}
		req := httptest.NewRequest("GET", "/api/recipes?q=soup", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if i == 1 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
			}
			// 19.5s left, rounded up.
			if got := rec.Header().Get("Retry-After"); got != "20" {
				t.Errorf("Retry-After = %q, want 20", got)
			}
		}
	}
}

func TestUserKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	if got := UserKey(req); got != "ip:198.51.100.7" {
		t.Errorf("UserKey = %q, want ip:198.51.100.7", got)
	}

	ctx := auth.WithIdentity(req.Context(), auth.Identity{UserID: 42})
	if got := UserKey(req.WithContext(ctx)); got != "user:42" {
		t.Errorf("UserKey = %q, want user:42", got)
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("CF-Connecting-IP", "203.0.113.1")
	if got := RealIP(req); got != "203.0.113.1" {
		t.Errorf("RealIP = %q, want CF header", got)
	}
	req.Header.Del("CF-Connecting-IP")
	req.Header.Set("X-Forwarded-For", " 198.51.100.2, 10.0.0.1")
	if got := RealIP(req); got != "198.51.100.2" {
		t.Errorf("RealIP = %q, want first forwarded hop", got)
	}
	req.Header.Del("X-Forwarded-For")
	if got := RealIP(req); got != "192.0.2.1" {
		t.Errorf("RealIP = %q, want 192.0.2.1", got)
	}
}
