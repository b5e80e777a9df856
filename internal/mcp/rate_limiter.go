package mcp

import (
	"sync"
	"time"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	rate       int       // requests per minute
	tokens     int       // current tokens
	maxTokens  int       // max tokens (burst)
	lastUpdate time.Time // last token update
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter. A rate of zero or less
// disables limiting.
func NewRateLimiter(ratePerMinute int) *RateLimiter {
	return &RateLimiter{
		rate:       ratePerMinute,
		tokens:     ratePerMinute,
		maxTokens:  ratePerMinute * 2,
		lastUpdate: time.Now(),
	}
}

// Allow takes a token for method if one is left
func (r *RateLimiter) Allow(method string) bool {
	if r.rate <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

// Remaining returns the tokens left without taking one
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return r.tokens
}

func (r *RateLimiter) refill() {
	now := time.Now()
	tokensToAdd := int(now.Sub(r.lastUpdate).Minutes() * float64(r.rate))
	if tokensToAdd > 0 {
		r.tokens = min(r.tokens+tokensToAdd, r.maxTokens)
		r.lastUpdate = now
	}
}
