package auth

import (
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	last     time.Time
}

// NewRateLimiter creates a limiter allowing rate operations per interval.
func NewRateLimiter(rate int64, interval time.Duration) *RateLimiter {
	if rate <= 0 || interval <= 0 {
		panic("rate and interval must be positive")
	}

	return &RateLimiter{
		rate:     float64(rate) / interval.Seconds(),
		capacity: float64(rate),
		tokens:   float64(rate),
		last:     time.Now(),
	}
}

// Allow checks if a request is allowed under the rate limit
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens = min(rl.capacity, rl.tokens+now.Sub(rl.last).Seconds()*rl.rate)
	rl.last = now

	if rl.tokens < 1.0 {
		return false
	}

	rl.tokens--

	return true
}

// WaitTime returns the time to wait before the next token is available
func (rl *RateLimiter) WaitTime() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.tokens >= 1.0 {
		return 0
	}

	return time.Duration((1.0 - rl.tokens) / rl.rate * float64(time.Second))
}

func (rl *RateLimiter) idleSince() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.last
}

/*
ClientLimiter keeps one bucket per client key, typically the remote IP or
the token subject.
*/
type ClientLimiter struct {
	mu       sync.Mutex
	rate     int64
	interval time.Duration
	buckets  map[string]*RateLimiter
}

func NewClientLimiter(rate int64, interval time.Duration) *ClientLimiter {
	if rate <= 0 || interval <= 0 {
		panic("rate and interval must be positive")
	}

	return &ClientLimiter{
		rate:     rate,
		interval: interval,
		buckets:  make(map[string]*RateLimiter),
	}
}

func (cl *ClientLimiter) Allow(key string) bool {
	return cl.bucket(key).Allow()
}

func (cl *ClientLimiter) WaitTime(key string) time.Duration {
	return cl.bucket(key).WaitTime()
}

// Cleanup drops buckets that have been idle for longer than idle.
func (cl *ClientLimiter) Cleanup(now time.Time, idle time.Duration) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	removed := 0

	for key, bucket := range cl.buckets {
		if now.Sub(bucket.idleSince()) > idle {
			delete(cl.buckets, key)
			removed++
		}
	}

	return removed
}

func (cl *ClientLimiter) bucket(key string) *RateLimiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	bucket, ok := cl.buckets[key]

	if !ok {
		bucket = NewRateLimiter(cl.rate, cl.interval)
		cl.buckets[key] = bucket
	}

	return bucket
}
