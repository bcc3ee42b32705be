package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/library-catalog/internal/apperror"
)

// ErrorFunc writes the response for a request the middleware refuses.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// visitor is one client's token bucket and when it was last used.
// lastSeen lets idle entries be evicted so the map does not grow forever.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is per-client token-bucket rate limiting built on
// golang.org/x/time/rate. Each client IP gets its own bucket refilled at rps
// tokens per second holding at most burst tokens.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	idle    time.Duration
	onLimit ErrorFunc
	now     func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter creates a RateLimiter. Refused requests are answered by
// onLimit with apperror.ErrRateLimited.
func NewRateLimiter(rps float64, burst int, onLimit ErrorFunc) *RateLimiter {
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     3 * time.Minute,
		onLimit:  onLimit,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Handler is the middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			rl.onLimit(w, r, apperror.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Except is Handler for every path but the ones listed, which pass through
// without spending a token.
func (rl *RateLimiter) Except(paths ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]bool, len(paths))
	for _, p := range paths {
		exempt[p] = true
	}
	return func(next http.Handler) http.Handler {
		limited := rl.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.idle {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idle {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// clientIP strips the port from RemoteAddr. With trust_proxy on, chi's RealIP
// middleware has already replaced RemoteAddr with the forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
