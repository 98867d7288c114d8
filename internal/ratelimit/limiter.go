// internal/ratelimit/limiter.go
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Operation costs in tokens. Uploads sample and hash a file, reads only hit
// the cache or the store.
const (
	CostRead    = 1
	CostAnalyze = 5
)

// ClientLimiter keeps one token bucket per client key.
type ClientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter creates a limiter refilling ratePerSecond tokens per second
// up to burst. A zero rate disables limiting.
func NewClientLimiter(ratePerSecond float64, burst int) *ClientLimiter {
	if burst < CostAnalyze {
		burst = CostAnalyze
	}
	return &ClientLimiter{
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// WithClock replaces the time source. Used by tests.
func (cl *ClientLimiter) WithClock(now func() time.Time) *ClientLimiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.now = now
	return cl
}

// Enabled reports whether requests are limited at all.
func (cl *ClientLimiter) Enabled() bool {
	return cl != nil && cl.limit > 0
}

// Allow spends cost tokens from key's bucket.
func (cl *ClientLimiter) Allow(key string, cost int) (RateLimitInfo, bool) {
	if !cl.Enabled() {
		return RateLimitInfo{}, true
	}
	cost = max(cost, 1)

	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	b, ok := cl.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, cost)
	tokens := b.limiter.TokensAt(now)

	info := RateLimitInfo{
		Limit:     cl.burst,
		Remaining: max(int(math.Floor(tokens)), 0),
		Reset:     now.Add(cl.refillTime(float64(cl.burst) - tokens)).Unix(),
	}
	if !allowed {
		info.RetryAfter = max(int(math.Ceil(cl.refillTime(float64(cost)-tokens).Seconds())), 1)
	}
	return info, allowed
}

func (cl *ClientLimiter) refillTime(missing float64) time.Duration {
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(cl.limit) * float64(time.Second))
}

// Sweep drops buckets idle for longer than the idle window and returns how
// many were removed.
func (cl *ClientLimiter) Sweep() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := cl.now().Add(-cl.idle)
	removed := 0
	for key, b := range cl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(cl.clients, key)
			removed++
		}
	}
	return removed
}

// Clients returns the number of tracked client buckets.
func (cl *ClientLimiter) Clients() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.clients)
}
