// Package httpguard implements the in-process HTTP ingress rate limiter.
// Unlike internal/ratelimit's Redis-backed channel throttle, this limiter
// only needs to survive a single process and protect a single listener
// from abusive request volume, so a per-IP token bucket held in memory is
// sufficient — the same tradeoff the teacher made for its HTTP middleware.
package httpguard

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter holds a token bucket per remote IP.
type IPRateLimiter struct {
	ips   sync.Map
	rps   rate.Limit
	burst int
}

// NewIPRateLimiter builds a limiter allowing rps requests/second per IP,
// with burst headroom, and starts its background cleanup loop.
func NewIPRateLimiter(rps rate.Limit, burst int) *IPRateLimiter {
	l := &IPRateLimiter{rps: rps, burst: burst}
	go l.cleanupLoop()
	return l
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	if existing, ok := l.ips.Load(ip); ok {
		return existing.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.rps, l.burst)
	actual, _ := l.ips.LoadOrStore(ip, limiter)
	return actual.(*rate.Limiter)
}

// cleanupLoop periodically clears tracked IPs so a long-running process
// doesn't accumulate one bucket per distinct attacker IP forever.
func (l *IPRateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		l.ips.Range(func(key, _ any) bool {
			l.ips.Delete(key)
			return true
		})
	}
}

// Middleware enforces the per-IP rate limit ahead of next.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if !l.getLimiter(ip).Allow() {
			slog.Warn("http ingress rate limit exceeded", "ip", ip, "path", r.URL.Path)
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
