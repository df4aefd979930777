// Package middleware contains HTTP middleware for the meetscribe API.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"meetscribe/pkg/api"
)

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
	limiters sync.Map // client IP -> *cachedLimiter

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// RateLimitOption configures a RateLimiter.
type RateLimitOption func(*RateLimiter)

// WithTTL sets how long an idle client's limiter is kept.
func WithTTL(ttl time.Duration) RateLimitOption {
	return func(rl *RateLimiter) {
		rl.ttl = ttl
	}
}

// NewRateLimiter allows perSecond requests per client with the given burst.
// perSecond <= 0 means unlimited.
func NewRateLimiter(perSecond float64, burst int, opts ...RateLimitOption) *RateLimiter {
	rl := &RateLimiter{
		limit: rate.Limit(perSecond),
		burst: max(burst, 1),
		ttl:   5 * time.Minute,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// A limit of 0 means unlimited
			if rl.limit > 0 && !rl.limiterFor(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(api.ErrorResponse{
					Error: "Too Many Requests",
					Code:  "429",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

func (c *cachedLimiter) idle(now time.Time, ttl time.Duration) bool {
	return now.Sub(time.Unix(0, c.lastSeen.Load())) > ttl
}

// limiterFor returns the limiter of key. A limiter is kept while its client stays
// active and replaced once it has been idle for longer than the ttl.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()
	rl.sweep(now)

	if v, ok := rl.limiters.Load(key); ok {
		cached := v.(*cachedLimiter)
		if !cached.idle(now, rl.ttl) {
			cached.lastSeen.Store(now.UnixNano())
			return cached.limiter
		}
		rl.limiters.CompareAndDelete(key, cached)
	}

	fresh := &cachedLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
	fresh.lastSeen.Store(now.UnixNano())
	v, _ := rl.limiters.LoadOrStore(key, fresh)
	cached := v.(*cachedLimiter)
	cached.lastSeen.Store(now.UnixNano())
	return cached.limiter
}

// sweep drops idle limiters, at most once per ttl.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.sweepMu.Lock()
	if now.Sub(rl.lastSweep) < rl.ttl {
		rl.sweepMu.Unlock()
		return
	}
	rl.lastSweep = now
	rl.sweepMu.Unlock()

	rl.limiters.Range(func(key, v any) bool {
		if cached := v.(*cachedLimiter); cached.idle(now, rl.ttl) {
			rl.limiters.CompareAndDelete(key, cached)
		}
		return true
	})
}

// clientIP returns the host part of the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
