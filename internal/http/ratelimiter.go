package http

import (
	"sync"
	"time"
)

// visitor tracks the token bucket for a single client key.
type visitor struct {
	tokens   float64
	refilled time.Time
	seen     time.Time
}

// RateLimiter is a token bucket limiter keyed by client identifier. Clients
// idle for longer than their TTL are forgotten by a background sweep.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	burst    float64
	rate     float64
	ttl      time.Duration
	now      func() time.Time
}

// NewRateLimiter constructs a limiter that grants burst tokens per client,
// refilled at ratePerSecond.
func NewRateLimiter(burst int, ratePerSecond float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		burst:    float64(burst),
		rate:     ratePerSecond,
		ttl:      ttl,
		now:      time.Now,
	}

	if ttl > 0 {
		ticker := time.NewTicker(ttl)
		go func() {
			for range ticker.C {
				rl.prune()
			}
		}()
	}

	return rl
}

// Allow consumes a token for key, reporting whether the request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{tokens: rl.burst, refilled: now}
		rl.visitors[key] = v
	}

	if elapsed := now.Sub(v.refilled).Seconds(); elapsed > 0 {
		v.tokens += elapsed * rl.rate
		if v.tokens > rl.burst {
			v.tokens = rl.burst
		}
		v.refilled = now
	}

	v.seen = now
	if v.tokens < 1 {
		return false
	}

	v.tokens--
	return true
}

func (rl *RateLimiter) prune() {
	if rl.ttl <= 0 {
		return
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, v := range rl.visitors {
		if now.Sub(v.seen) > rl.ttl {
			delete(rl.visitors, key)
		}
	}
}
