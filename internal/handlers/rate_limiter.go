package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pocket-tcg/api/internal/platform/auth"
	"github.com/pocket-tcg/api/internal/platform/httpx"
)

const limiterIdleTTL = 10 * time.Minute

type rateLimiter interface {
	Allow(key string) bool
}

// WriteLimiter throttles wishlist writes with one token bucket per signed-in user.
type WriteLimiter struct {
	limit rate.Limit
	burst int
	clock func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var _ rateLimiter = (*WriteLimiter)(nil)

// NewWriteLimiter allows perMinute writes per user with the given burst. A non-positive rate
// disables limiting and returns nil.
func NewWriteLimiter(perMinute, burst int, clock func() time.Time) *WriteLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &WriteLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token for key.
func (l *WriteLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.pruneIdleLocked(now)
	return b.limiter.AllowN(now, 1)
}

func (l *WriteLimiter) pruneIdleLocked(now time.Time) {
	if now.Sub(l.lastPrune) < limiterIdleTTL {
		return
	}
	l.lastPrune = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.buckets, key)
		}
	}
}

// Middleware rejects requests over the caller's budget with 429.
func (l *WriteLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if identity, ok := auth.IdentityFromContext(r.Context()); ok {
				key = identity.UID
			}
			if !l.Allow(key) {
				w.Header().Set("Retry-After", "1")
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many wishlist updates; slow down", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
