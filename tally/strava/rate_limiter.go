package strava

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a client-side sliding window limiter applied before every
// page request.
type RateLimiter struct {
	mu           sync.Mutex
	requestTimes []time.Time
	maxRequests  int
	windowSize   time.Duration
	enabled      bool
	now          func() time.Time
}

// NewRateLimiter creates a limiter allowing maxRequests per windowSeconds.
// A disabled limiter, or one with maxRequests < 1, never blocks.
func NewRateLimiter(enabled bool, maxRequests int, windowSeconds float64) *RateLimiter {
	return &RateLimiter{
		requestTimes: make([]time.Time, 0, maxRequests),
		maxRequests:  maxRequests,
		windowSize:   time.Duration(windowSeconds * float64(time.Second)),
		enabled:      enabled && maxRequests > 0,
		now:          time.Now,
	}
}

// WaitIfNeeded blocks until a request fits in the window or ctx is done.
func (rl *RateLimiter) WaitIfNeeded(ctx context.Context) error {
	if !rl.enabled {
		return ctx.Err()
	}

	for {
		rl.mu.Lock()
		now := rl.now()
		windowStart := now.Add(-rl.windowSize)

		valid := rl.requestTimes[:0]
		for _, t := range rl.requestTimes {
			if t.After(windowStart) {
				valid = append(valid, t)
			}
		}
		rl.requestTimes = valid

		if len(rl.requestTimes) < rl.maxRequests {
			rl.requestTimes = append(rl.requestTimes, now)
			rl.mu.Unlock()
			return nil
		}

		waitTime := rl.windowSize - now.Sub(rl.requestTimes[0])
		rl.mu.Unlock()

		if waitTime <= 0 {
			continue
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InWindow returns how many requests are currently counted in the window.
func (rl *RateLimiter) InWindow() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.windowSize)
	n := 0
	for _, t := range rl.requestTimes {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
