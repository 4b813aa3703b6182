package strava

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(false, 1, 60)
	for i := 0; i < 5; i++ {
		if err := rl.WaitIfNeeded(context.Background()); err != nil {
			t.Fatalf("WaitIfNeeded() on disabled limiter returned %v", err)
		}
	}
	if n := rl.InWindow(); n != 0 {
		t.Errorf("InWindow() = %d, want 0 when disabled", n)
	}
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(true, 3, 60)
	for i := 0; i < 3; i++ {
		if err := rl.WaitIfNeeded(context.Background()); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if n := rl.InWindow(); n != 3 {
		t.Errorf("InWindow() = %d, want 3", n)
	}
}

func TestRateLimiter_BlocksUntilContextDone(t *testing.T) {
	rl := NewRateLimiter(true, 1, 60)
	if err := rl.WaitIfNeeded(context.Background()); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := rl.WaitIfNeeded(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitIfNeeded() = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("WaitIfNeeded() did not honour the context deadline")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(true, 1, 0.05)
	if err := rl.WaitIfNeeded(context.Background()); err != nil {
		t.Fatalf("first request: %v", err)
	}
	start := time.Now()
	if err := rl.WaitIfNeeded(context.Background()); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second request waited %v, expected roughly the 50ms window", elapsed)
	}
}

func TestRateLimitTracker_Observe(t *testing.T) {
	tracker := NewRateLimitTracker()
	if tracker.GetInfo() != nil {
		t.Fatal("GetInfo() should be nil before anything is observed")
	}

	h := http.Header{}
	h.Set("X-RateLimit-Limit", "200,2000")
	h.Set("X-RateLimit-Usage", "12, 150")
	tracker.Observe(h)

	info := tracker.GetInfo()
	if info == nil {
		t.Fatal("GetInfo() returned nil after Observe")
	}
	if info.ShortLimit != 200 || info.DailyLimit != 2000 || info.ShortUsage != 12 || info.DailyUsage != 150 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Active {
		t.Error("Observe alone should not mark the limit active")
	}
	if info.NearLimit() {
		t.Error("NearLimit() = true at 6% usage")
	}
}

func TestRateLimitTracker_IgnoresMalformedHeaders(t *testing.T) {
	tracker := NewRateLimitTracker()
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "lots")
	tracker.Observe(h)
	if tracker.GetInfo() != nil {
		t.Error("malformed headers should not produce info")
	}
}

func TestRateLimitTracker_UpdateAndClear(t *testing.T) {
	tracker := NewRateLimitTracker()
	tracker.Update(30)

	info := tracker.GetInfo()
	if info == nil || !info.Active || info.RetryAfterSeconds != 30 {
		t.Fatalf("unexpected info after Update: %+v", info)
	}

	tracker.Clear()
	if info := tracker.GetInfo(); info == nil || info.Active {
		t.Errorf("Clear() should leave an inactive record, got %+v", info)
	}
}

func TestRateLimitTracker_ExpiredMarkerClears(t *testing.T) {
	tracker := NewRateLimitTracker()
	tracker.Update(0)
	if info := tracker.GetInfo(); info == nil || info.Active {
		t.Errorf("a zero retry-after should already be expired, got %+v", info)
	}
}

func TestRateLimitInfo_NearLimit(t *testing.T) {
	tests := []struct {
		info RateLimitInfo
		want bool
	}{
		{RateLimitInfo{ShortLimit: 100, ShortUsage: 89}, false},
		{RateLimitInfo{ShortLimit: 100, ShortUsage: 90}, true},
		{RateLimitInfo{DailyLimit: 1000, DailyUsage: 950}, true},
		{RateLimitInfo{}, false},
	}
	for _, tt := range tests {
		if got := tt.info.NearLimit(); got != tt.want {
			t.Errorf("NearLimit(%+v) = %v, want %v", tt.info, got, tt.want)
		}
	}
}

func TestErrors_Unwrap(t *testing.T) {
	original := errors.New("boom")

	rl := &RateLimitError{RetryAfter: 10, Page: 3, Original: original}
	if rl.Error() == "" || !errors.Is(rl, original) {
		t.Error("RateLimitError should format and unwrap")
	}

	api := &APIError{Message: "unexpected status", StatusCode: 502, Page: 1, Original: original}
	if api.Error() == "" || !errors.Is(api, original) {
		t.Error("APIError should format and unwrap")
	}

	bare := &APIError{Message: "request failed"}
	if bare.Unwrap() != nil {
		t.Error("Unwrap() should be nil without an original error")
	}
}
