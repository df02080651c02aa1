package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sweepInterval = time.Minute
	clientIdleTTL = 10 * time.Minute
)

// clientLimiters tracks one token bucket per client IP. Idle entries are
// swept inline, at most once per sweepInterval, so no background goroutine
// outlives the handler.
type clientLimiters struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	clients   map[string]*clientEntry
	lastSweep time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(rps rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{
		rps:       rps,
		burst:     burst,
		clients:   make(map[string]*clientEntry),
		lastSweep: time.Now(),
	}
}

// get returns the limiter for ip, creating it on first sight and sweeping
// idle entries when the sweep interval has elapsed.
func (cl *clientLimiters) get(ip string, now time.Time) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if now.Sub(cl.lastSweep) > sweepInterval {
		for addr, c := range cl.clients {
			if now.Sub(c.lastSeen) > clientIdleTTL {
				delete(cl.clients, addr)
			}
		}
		cl.lastSweep = now
	}

	c, ok := cl.clients[ip]
	if !ok {
		c = &clientEntry{limiter: rate.NewLimiter(cl.rps, cl.burst)}
		cl.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// RateLimit returns middleware that applies per-client token-bucket rate
// limiting. Each unique client IP gets its own limiter allowing rps requests
// per second with the given burst.
func RateLimit(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	limiters := newClientLimiters(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := limiters.get(extractClientIP(r), time.Now())

			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP determines the client IP, honoring X-Forwarded-For when the
// request went through a proxy.
func extractClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
