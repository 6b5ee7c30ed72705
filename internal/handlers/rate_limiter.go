package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codfleet/api/internal/platform/auth"
	"github.com/codfleet/api/internal/platform/httpx"
)

const rateLimiterIdleTTL = 10 * time.Minute

type rateLimiter interface {
	Allow(key string) bool
}

// keyedRateLimiter holds one token bucket per caller key.
type keyedRateLimiter struct {
	limit rate.Limit
	burst int
	clock func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	swept    time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedRateLimiter(perMinute int, clock func() time.Time) *keyedRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &keyedRateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		clock:    clock,
		visitors: make(map[string]*visitor),
		swept:    clock(),
	}
}

func (l *keyedRateLimiter) Allow(key string) bool {
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

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.sweepLocked(now)
	return v.limiter.AllowN(now, 1)
}

func (l *keyedRateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.swept) < rateLimiterIdleTTL {
		return
	}
	l.swept = now
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > rateLimiterIdleTTL {
			delete(l.visitors, key)
		}
	}
}

// RateLimitMiddleware throttles per authenticated actor, or per client IP when the request
// carries no identity. It must run after authentication to see the actor.
func RateLimitMiddleware(actorPerMinute, anonymousPerMinute int, clock func() time.Time) func(http.Handler) http.Handler {
	return rateLimitMiddleware(newKeyedRateLimiter(actorPerMinute, clock), newKeyedRateLimiter(anonymousPerMinute, clock))
}

func rateLimitMiddleware(actors, anonymous rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter, key := anonymous, "ip:"+clientIP(r)
			if identity, ok := auth.IdentityFromContext(r.Context()); ok {
				limiter, key = actors, "actor:"+identity.ActorID()
			}
			if limiter == nil || limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "1")
			httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}
