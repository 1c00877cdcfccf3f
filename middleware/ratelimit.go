package middleware

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter is the token bucket for one IP plus when it was last used.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP
type IPRateLimiter struct {
	ips   map[string]*clientLimiter
	mu    sync.Mutex
	rate  rate.Limit
	burst int
	now   func() time.Time
}

// NewIPRateLimiter creates a new per-IP rate limiter
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*clientLimiter),
		rate:  r,
		burst: burst,
		now:   time.Now,
	}
}

// Limit returns the burst size, reported as X-RateLimit-Limit
func (i *IPRateLimiter) Limit() int {
	return i.burst
}

// GetLimiter returns the limiter for ip, creating it on first use
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	cl, exists := i.ips[ip]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.ips[ip] = cl
	}
	cl.lastSeen = i.now()

	return cl.limiter
}

// Allow consumes a token for ip and returns whether the request may proceed
// and how many tokens are left.
func (i *IPRateLimiter) Allow(ip string) (bool, int) {
	limiter := i.GetLimiter(ip)
	allowed := limiter.Allow()
	return allowed, int(math.Max(0, math.Floor(limiter.Tokens())))
}

// Cleanup drops limiters not used for maxIdle and returns how many went.
func (i *IPRateLimiter) Cleanup(maxIdle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := i.now().Add(-maxIdle)
	removed := 0
	for ip, cl := range i.ips {
		if cl.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked clients
func (i *IPRateLimiter) Size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}
