package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the Strava v3 REST API root.
	DefaultBaseURL = "https://www.strava.com/api/v3"
	// MaxPerPage is the largest page size the activity listing accepts.
	MaxPerPage = 200

	activitiesPath = "/athlete/activities"
	maxPageBytes   = 32 << 20
)

// Config holds configuration for the activity client.
type Config struct {
	BaseURL        string
	PerPage        int           // 0 or > MaxPerPage means MaxPerPage
	RequestTimeout time.Duration // 0 = no per-request timeout

	// Client-side rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   float64

	// HTTPClient supplies the underlying transport. Optional.
	HTTPClient *http.Client
}

// Client pages through the authenticated athlete's activities.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	perPage          int
	rateLimiter      *RateLimiter
	rateLimitTracker *RateLimitTracker
}

// Page is one non-empty page of raw activity records.
type Page struct {
	Number  int
	Records []json.RawMessage
}

// NewClient creates a client that authorizes every request with token.
func NewClient(config *Config, token string) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("access token is required")
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}

	perPage := config.PerPage
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	base := config.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = config.RequestTimeout

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		perPage:    perPage,
		rateLimiter: NewRateLimiter(
			config.RateLimitEnabled,
			config.RateLimitRequests,
			config.RateLimitWindow,
		),
		rateLimitTracker: NewRateLimitTracker(),
	}, nil
}

// GetRateLimitInfo returns the last rate limit state reported by the API.
func (c *Client) GetRateLimitInfo() *RateLimitInfo {
	return c.rateLimitTracker.GetInfo()
}

// Pages returns the activity pages in [after, before), starting from page 1
// every time the sequence is ranged over. The sequence ends at the first
// empty page; no request is made past it. On failure a single (Page{}, err)
// pair is yielded and the sequence stops.
func (c *Client) Pages(ctx context.Context, after, before time.Time) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(Page{}, fmt.Errorf("context cancelled during pagination: %w", err))
				return
			}

			records, err := c.fetchPage(ctx, after, before, page)
			if err != nil {
				yield(Page{}, err)
				return
			}
			if len(records) == 0 {
				return
			}
			if !yield(Page{Number: page, Records: records}, nil) {
				return
			}
		}
	}
}

// Activities flattens Pages into individual raw records, in API order.
func (c *Client) Activities(ctx context.Context, after, before time.Time) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		for page, err := range c.Pages(ctx, after, before) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, record := range page.Records {
				if !yield(record, nil) {
					return
				}
			}
		}
	}
}

// FetchAll drains every page. Any failure discards what was collected.
// progress, if non-nil, is called after each page with the page number and
// the running record count.
func (c *Client) FetchAll(ctx context.Context, after, before time.Time, progress func(page, total int)) ([]json.RawMessage, error) {
	all := make([]json.RawMessage, 0)
	for page, err := range c.Pages(ctx, after, before) {
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if progress != nil {
			progress(page.Number, len(all))
		}
	}
	return all, nil
}

// fetchPage requests a single page of activities.
func (c *Client) fetchPage(ctx context.Context, after, before time.Time, page int) ([]json.RawMessage, error) {
	if err := c.rateLimiter.WaitIfNeeded(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	if !after.IsZero() {
		q.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	if !before.IsZero() {
		q.Set("before", strconv.FormatInt(before.Unix(), 10))
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+activitiesPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &APIError{Message: "failed to build request", Page: page, Original: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: "request failed", Page: page, Original: err}
	}
	defer resp.Body.Close()

	c.rateLimitTracker.Observe(resp.Header)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &APIError{Message: "failed to read response", StatusCode: resp.StatusCode, Page: page, Original: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.rateLimitTracker.Update(retryAfter)
		return nil, &RateLimitError{RetryAfter: retryAfter, Page: page, Original: errors.New(snippet(body))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Message:    "unexpected status",
			StatusCode: resp.StatusCode,
			Page:       page,
			Original:   errors.New(snippet(body)),
		}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &APIError{Message: "malformed activity page", StatusCode: resp.StatusCode, Page: page, Original: err}
	}
	if records == nil {
		return nil, &APIError{Message: "malformed activity page", StatusCode: resp.StatusCode, Page: page, Original: errors.New("null body")}
	}

	c.rateLimitTracker.Clear()
	if info := c.rateLimitTracker.GetInfo(); info != nil && info.NearLimit() {
		log.Printf("WARN: Strava rate limit nearly exhausted (15min %d/%d, daily %d/%d)",
			info.ShortUsage, info.ShortLimit, info.DailyUsage, info.DailyLimit)
	}

	return records, nil
}

func parseRetryAfter(v string) int {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return secs
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return int(d.Round(time.Second) / time.Second)
		}
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty response body"
	}
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
