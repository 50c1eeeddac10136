package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/seedling/internal/logging"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(max int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(max, window)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterWindow(t *testing.T) {
	rl, clock := newTestLimiter(2, time.Minute)

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)

	ok, wait := rl.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "clients are limited independently")

	clock.advance(time.Minute + time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestRateLimiterBackoff(t *testing.T) {
	rl, clock := newTestLimiter(1, time.Minute)

	ok, _ := rl.Allow("a")
	require.True(t, ok)

	var waits []time.Duration
	for i := 0; i < 4; i++ {
		ok, wait := rl.Allow("a")
		require.False(t, ok)
		waits = append(waits, wait)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, waits)

	for i := 0; i < 20; i++ {
		_, wait := rl.Allow("a")
		assert.LessOrEqual(t, wait, maxBackoff)
	}

	clock.advance(maxBackoff + 3*time.Minute)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
	ok, wait := rl.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait, "violations are forgiven after two quiet windows")
}

func TestRateLimiterPrune(t *testing.T) {
	rl, clock := newTestLimiter(5, time.Minute)
	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 2, rl.Clients())

	clock.advance(30 * time.Second)
	rl.Allow("b")
	clock.advance(31 * time.Second)
	rl.Prune()
	assert.Equal(t, 1, rl.Clients())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)
	h := RateLimit(rl, logging.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", clientIP(r))

	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(r))
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name       string
		production bool
		tls        bool
		frame      string
		hsts       string
	}{
		{"development", false, true, "SAMEORIGIN", ""},
		{"production plain", true, false, "DENY", ""},
		{"production tls", true, true, "DENY", hstsValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
			if !tt.tls {
				req.TLS = nil
			}
			rec := httptest.NewRecorder()
			SecurityHeaders(tt.production)(next).ServeHTTP(rec, req)

			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, tt.frame, rec.Header().Get("X-Frame-Options"))
			assert.Equal(t, tt.hsts, rec.Header().Get("Strict-Transport-Security"))
		})
	}
}
