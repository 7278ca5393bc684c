package api

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a token bucket guarding expensive endpoints. A bucket of
// capacity tokens refills one token per refill interval.
type RateLimiter struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refill     time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing a burst of capacity requests,
// then one request per refill interval.
func NewRateLimiter(capacity int, refill time.Duration) *RateLimiter {
	return &RateLimiter{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refill:     refill,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed > 0 {
		l.tokens += float64(elapsed) / float64(l.refill)
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.lastRefill = now
	}

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Middleware rejects requests with 429 when the bucket is empty.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			WriteProblem(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
