package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter gates requests against a per-window budget
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request
	Wait()
	// Reset resets the limiter state
	Reset()
}

// TokenBucket implements a token bucket rate limiter. The bucket refills
// to full capacity once per refill period.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait() {
	for !tb.Allow() {
		tb.mu.Lock()
		timeUntilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if timeUntilRefill > 0 {
			time.Sleep(timeUntilRefill)
		} else {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// Reset refills the bucket to capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// Delayer inserts a pause between consecutive requests
type Delayer interface {
	// Delay blocks for one politeness interval or until the context ends
	Delay(ctx context.Context) error
}

// JitterDelay sleeps for a uniformly random duration in [min, max].
// A randomized pause between page fetches keeps request timing from
// looking mechanical.
type JitterDelay struct {
	min time.Duration
	max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitterDelay creates a delayer over the given range. If max < min
// the range collapses to min.
func NewJitterDelay(min, max time.Duration) *JitterDelay {
	if max < min {
		max = min
	}
	return &JitterDelay{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay blocks for a random duration within the configured range
func (j *JitterDelay) Delay(ctx context.Context) error {
	d := j.next()
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *JitterDelay) next() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.max == j.min {
		return j.min
	}
	return j.min + time.Duration(j.rng.Int63n(int64(j.max-j.min)+1))
}

// NoDelay is a Delayer that never waits. Useful in tests.
type NoDelay struct{}

func (NoDelay) Delay(ctx context.Context) error { return ctx.Err() }
