package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	auth "rewards-backend/storage/auth"
)

// RateLimiter implements token bucket rate limiting per client.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*bucket
	capacity   float64
	refillRate float64 // tokens per second
	now        func() time.Time
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter allows bursts of capacity requests refilled at perSecond.
func NewRateLimiter(capacity int, perSecond float64) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &RateLimiter{
		clients:    make(map[string]*bucket),
		capacity:   float64(capacity),
		refillRate: perSecond,
		now:        time.Now,
	}
}

// Allow spends one token of clientID's bucket.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[clientID]
	if !ok {
		b = &bucket{tokens: rl.capacity, lastRefill: now}
		rl.clients[clientID] = b
	}
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens += elapsed * rl.refillRate
		if b.tokens > rl.capacity {
			b.tokens = rl.capacity
		}
		b.lastRefill = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Middleware limits authenticated callers by key label and anonymous callers
// by remote IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientID(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(1/rl.refillRate)+1))
			Error(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientID(r *http.Request) string {
	if key, ok := auth.FromContext(r.Context()); ok {
		if key.Key != "" {
			return "key:" + key.Key
		}
		return "label:" + key.Label
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
