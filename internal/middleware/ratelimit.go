package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/seedling/internal/logging"
)

const (
	baseBackoff = time.Second
	maxBackoff  = 5 * time.Minute

	// maxTrackedClients triggers a prune before a new client is added.
	maxTrackedClients = 10000
)

// window is one client's sliding window. Repeated violations push the
// client into an exponentially growing backoff.
type window struct {
	timestamps    []time.Time
	violations    int
	lastViolation time.Time
	backoffUntil  time.Time
}

// RateLimiter is a per-client sliding window rate limiter.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

// NewRateLimiter allows maxRequests per client within each window.
func NewRateLimiter(maxRequests int, d time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      d,
		now:         time.Now,
		clients:     make(map[string]*window),
	}
}

// Allow records a request from client. When the request is rejected it
// returns how long the client should wait.
func (rl *RateLimiter) Allow(client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.clients[client]
	if w == nil {
		if len(rl.clients) >= maxTrackedClients {
			rl.prune(now)
		}
		w = &window{}
		rl.clients[client] = w
	}

	if now.Before(w.backoffUntil) {
		rl.violate(w, now)
		return false, w.backoffUntil.Sub(now)
	}

	w.timestamps = trim(w.timestamps, now.Add(-rl.window))
	if len(w.timestamps) >= rl.maxRequests {
		rl.violate(w, now)
		return false, w.backoffUntil.Sub(now)
	}

	// Clients that behaved for two windows are forgiven.
	if w.violations > 0 && now.Sub(w.lastViolation) > 2*rl.window {
		w.violations = 0
	}
	w.timestamps = append(w.timestamps, now)
	return true, 0
}

// Prune drops clients with no request inside the window and no pending
// backoff.
func (rl *RateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(rl.now())
}

// prune must be called with mu held.
func (rl *RateLimiter) prune(now time.Time) {
	for client, w := range rl.clients {
		w.timestamps = trim(w.timestamps, now.Add(-rl.window))
		if len(w.timestamps) == 0 && !now.Before(w.backoffUntil) {
			delete(rl.clients, client)
		}
	}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// violate must be called with mu held.
func (rl *RateLimiter) violate(w *window, now time.Time) {
	w.violations++
	w.lastViolation = now

	backoff := time.Duration(float64(baseBackoff) * math.Pow(2, float64(w.violations-1)))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	w.backoffUntil = now.Add(backoff)
}

func trim(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return timestamps
	}
	return append(timestamps[:0], timestamps[i:]...)
}

// RateLimit rejects clients over the limit with 429 and a Retry-After
// header. Clients are keyed by remote IP.
func RateLimit(rl *RateLimiter, logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			if ok, wait := rl.Allow(client); !ok {
				seconds := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				logger.Debug(r.Context(), "rate limited", "client", client, "retry_after", seconds)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
