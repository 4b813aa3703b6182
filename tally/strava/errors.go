package strava

import "fmt"

// RateLimitError is returned when the API answers 429 Too Many Requests.
type RateLimitError struct {
	RetryAfter int   // Seconds to wait before retrying, 0 if unknown
	Page       int   // Page being requested when the limit hit
	Original   error // Body or transport detail
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("Strava API rate limited on page %d: retry after %d seconds: %v", e.Page, e.RetryAfter, e.Original)
	}
	return fmt.Sprintf("Strava API rate limited on page %d: %v", e.Page, e.Original)
}

func (e *RateLimitError) Unwrap() error {
	return e.Original
}

// APIError represents any other failed activity page request.
// StatusCode is 0 when the request never produced a response.
type APIError struct {
	Message    string
	StatusCode int
	Page       int
	Original   error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("Strava API error: %s", e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Page > 0 {
		msg = fmt.Sprintf("%s on page %d", msg, e.Page)
	}
	if e.Original != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Original)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Original
}
