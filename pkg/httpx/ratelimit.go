package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// StrictLimit suits unauthenticated issuance endpoints where abuse directly
// consumes server-side state (e.g. device authorization requests).
var StrictLimit = RateLimitConfig{
	RequestsPerWindow: 10,
	Window:            time.Minute,
	Burst:             10,
}

// ClientIP extracts the caller address, honouring X-Forwarded-For and
// X-Real-IP for proxied requests.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	lastGC   time.Time
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Drop the whole map occasionally so abandoned keys don't accumulate.
	if time.Since(rl.lastGC) > time.Hour {
		rl.limiters = make(map[string]*rate.Limiter)
		rl.lastGC = time.Now()
	}

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// RateLimitMiddleware limits requests per client IP using a token bucket.
// Over-limit requests receive 429 with a Retry-After hint.
func RateLimitMiddleware(cfg RateLimitConfig) Middleware {
	rl := &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:    cfg.Burst,
		lastGC:   time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.getLimiter(ClientIP(r)).Allow() {
				w.Header().Set("Retry-After", "60")
				WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":             "slow_down",
					"error_description": "too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
