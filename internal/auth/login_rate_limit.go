package auth

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter throttles login traffic per client IP before any
// credential work happens. It complements the per-identity lockout: the
// lockout protects one account, this bounds how fast one address can probe
// many accounts. State is a fixed window per IP (count plus window start),
// held in memory under a mutex with a bounded entry count.
type LoginRateLimiter struct {
	mu         sync.Mutex
	maxHits    int
	window     time.Duration
	byIP       map[string]ipWindow
	maxEntries int
}

type ipWindow struct {
	start time.Time
	hits  int
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:    maxHits,
		window:     window,
		byIP:       make(map[string]ipWindow),
		maxEntries: 5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(requestIP(r), time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.byIP[ip]
	if !ok || now.Sub(current.start) >= l.window {
		l.byIP[ip] = ipWindow{start: now, hits: 1}
		l.sweep(now)
		return true, 0
	}

	if current.hits >= l.maxHits {
		retryAfter := current.start.Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	current.hits++
	l.byIP[ip] = current
	return true, 0
}

// sweep drops expired windows once the table grows past maxEntries. Called
// with the mutex held.
func (l *LoginRateLimiter) sweep(now time.Time) {
	if len(l.byIP) <= l.maxEntries {
		return
	}
	for ip, current := range l.byIP {
		if now.Sub(current.start) >= l.window {
			delete(l.byIP, ip)
		}
	}
}

func requestIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
