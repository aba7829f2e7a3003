// Package ratelimit provides a per-IP token-bucket rate limiter for the
// proxy's rate-limit gate.
package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter holds a rate limiter and the last time it was consulted, so
// idle entries can be evicted.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter provides IP-keyed rate limiting. The limiter state is opaque
// and owned entirely by this package; the rest of the pipeline only
// calls Allow and RetryAfterSeconds.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	burst    int
}

// New creates a new per-IP rate limiter and starts its background
// cleanup loop.
func New(ratePerSecond float64, burst int) *Limiter {
	rl := &Limiter{
		limiters: make(map[string]*ipLimiter),
		rate:     rate.Limit(ratePerSecond),
		burst:    burst,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *Limiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, exists := rl.limiters[ip]; exists {
		l.lastSeen = time.Now()
		return l.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = &ipLimiter{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

// cleanupLoop removes entries idle for more than 5 minutes, checked
// every 3 minutes.
func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(3 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for ip, l := range rl.limiters {
			if time.Since(l.lastSeen) > 5*time.Minute {
				delete(rl.limiters, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow reports whether a request from ip may proceed.
func (rl *Limiter) Allow(ip string) bool {
	return rl.getLimiter(ip).Allow()
}

// RetryAfterSeconds returns the Retry-After value to report on a 429,
// derived from the configured steady-state rate.
func (rl *Limiter) RetryAfterSeconds() string {
	seconds := 1
	if rl.rate > 0 {
		seconds = max(int(1.0/float64(rl.rate)), 1)
	}
	return strconv.Itoa(seconds)
}
