//go:build integration

package strava

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/sv4u/stravatally/tally/activity"
)

func TestClient_Integration(t *testing.T) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	token := os.Getenv("STRAVA_ACCESS_TOKEN")
	if token == "" {
		t.Skip("STRAVA_ACCESS_TOKEN required for integration tests")
	}

	client, err := NewClient(&Config{
		RequestTimeout:    30 * time.Second,
		RateLimitEnabled:  true,
		RateLimitRequests: 10,
		RateLimitWindow:   1.0,
	}, token)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	after, before := YearWindow(time.Now().Year()-1, time.Local)
	records, err := client.FetchAll(context.Background(), after, before, func(page, total int) {
		t.Logf("page %d: %d activities so far", page, total)
	})
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}

	for i, raw := range records {
		if _, err := activity.DecodeRecord(raw); err != nil {
			t.Errorf("record %d does not decode: %v", i, err)
		}
	}
	if info := client.GetRateLimitInfo(); info != nil {
		t.Logf("rate limit usage: 15min %d/%d, daily %d/%d", info.ShortUsage, info.ShortLimit, info.DailyUsage, info.DailyLimit)
	}
}
