package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/securechat/securechat/internal/config"
)

// ipRateLimiter throttles requests per remote address with a token
// bucket per IP. Idle entries are evicted to bound the map.
type ipRateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byIP  map[string]*limiterEntry
	sweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(cfg config.RateLimitConfig) *ipRateLimiter {
	if !cfg.Enabled {
		return nil
	}
	return &ipRateLimiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		idleTTL: 10 * time.Minute,
		byIP:    make(map[string]*limiterEntry),
	}
}

func (l *ipRateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweep) > l.idleTTL {
		for key, entry := range l.byIP {
			if now.Sub(entry.lastSeen) > l.idleTTL {
				delete(l.byIP, key)
			}
		}
		l.sweep = now
	}

	entry, ok := l.byIP[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = entry
	}
	entry.lastSeen = now

	return entry.limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
