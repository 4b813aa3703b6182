package strava

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitInfo is the last known server-side rate limit state.
// Strava reports a short (15 minute) and a daily window in its
// X-RateLimit-Limit and X-RateLimit-Usage headers as "short,daily".
type RateLimitInfo struct {
	ShortLimit int
	ShortUsage int
	DailyLimit int
	DailyUsage int

	// Set after a 429 response until RetryAfterTimestamp passes.
	Active              bool
	RetryAfterSeconds   int
	RetryAfterTimestamp int64
	DetectedAt          int64
}

// NearLimit reports whether either window has less than 10% headroom.
func (i *RateLimitInfo) NearLimit() bool {
	near := func(usage, limit int) bool {
		return limit > 0 && usage*10 >= limit*9
	}
	return near(i.ShortUsage, i.ShortLimit) || near(i.DailyUsage, i.DailyLimit)
}

// RateLimitTracker records rate limit headers and 429s for status reporting.
type RateLimitTracker struct {
	mu   sync.Mutex
	info RateLimitInfo
	seen bool
}

// NewRateLimitTracker creates an empty tracker.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{}
}

// Observe records the usage headers of a response, if present.
func (t *RateLimitTracker) Observe(h http.Header) {
	shortLimit, dailyLimit, okLimit := parsePair(h.Get("X-RateLimit-Limit"))
	shortUsage, dailyUsage, okUsage := parsePair(h.Get("X-RateLimit-Usage"))
	if !okLimit && !okUsage {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = true
	if okLimit {
		t.info.ShortLimit, t.info.DailyLimit = shortLimit, dailyLimit
	}
	if okUsage {
		t.info.ShortUsage, t.info.DailyUsage = shortUsage, dailyUsage
	}
}

// Update marks the limit as hit with the given retry-after seconds.
func (t *RateLimitTracker) Update(retryAfterSeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().Unix()
	t.seen = true
	t.info.Active = true
	t.info.RetryAfterSeconds = retryAfterSeconds
	t.info.RetryAfterTimestamp = now + int64(retryAfterSeconds)
	t.info.DetectedAt = now
}

// GetInfo returns a copy of the current state, or nil if nothing was observed.
// An expired 429 marker is cleared.
func (t *RateLimitTracker) GetInfo() *RateLimitInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.seen {
		return nil
	}
	if t.info.Active && time.Now().Unix() >= t.info.RetryAfterTimestamp {
		t.info.Active = false
		t.info.RetryAfterSeconds = 0
		t.info.RetryAfterTimestamp = 0
	}
	info := t.info
	return &info
}

// Clear drops the 429 marker after a successful request.
func (t *RateLimitTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info.Active = false
	t.info.RetryAfterSeconds = 0
	t.info.RetryAfterTimestamp = 0
}

func parsePair(v string) (int, int, bool) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}
