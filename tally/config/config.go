package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Version is the only configuration file version this build understands.
const Version = "1.0"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// StravaSettings holds the remote API and OAuth endpoint settings.
type StravaSettings struct {
	AuthURL  string   `yaml:"auth_url"`
	TokenURL string   `yaml:"token_url"`
	APIURL   string   `yaml:"api_url"`
	Scopes   []string `yaml:"scopes"`

	PerPage        int `yaml:"per_page"`
	RequestTimeout int `yaml:"request_timeout"` // seconds

	// Client-side rate limiting
	RateLimitEnabled  *bool   `yaml:"rate_limit_enabled"` // nil = enabled
	RateLimitRequests int     `yaml:"rate_limit_requests"`
	RateLimitWindow   float64 `yaml:"rate_limit_window"` // seconds
}

// SetDefaults sets default values for StravaSettings.
func (s *StravaSettings) SetDefaults() {
	if s.AuthURL == "" {
		s.AuthURL = "https://www.strava.com/oauth/authorize"
	}
	if s.TokenURL == "" {
		s.TokenURL = "https://www.strava.com/oauth/token"
	}
	if s.APIURL == "" {
		s.APIURL = "https://www.strava.com/api/v3"
	}
	if len(s.Scopes) == 0 {
		s.Scopes = []string{"read", "activity:read_all"}
	}
	if s.PerPage == 0 {
		s.PerPage = 200
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 30
	}
	if s.RateLimitEnabled == nil {
		enabled := true
		s.RateLimitEnabled = &enabled
	}
	if s.RateLimitRequests == 0 {
		s.RateLimitRequests = 10
	}
	if s.RateLimitWindow == 0 {
		s.RateLimitWindow = 1.0
	}
}

// Validate validates StravaSettings.
func (s *StravaSettings) Validate() error {
	for name, raw := range map[string]string{
		"strava.auth_url":  s.AuthURL,
		"strava.token_url": s.TokenURL,
		"strava.api_url":   s.APIURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigError{
				Message: fmt.Sprintf("Invalid %s: %q. Must be an absolute http(s) URL", name, raw),
			}
		}
	}

	if s.PerPage < 1 || s.PerPage > 200 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid per_page: %d. Must be between 1 and 200", s.PerPage),
		}
	}
	if s.RequestTimeout < 1 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid request_timeout: %d. Must be at least 1 second", s.RequestTimeout),
		}
	}
	if s.RateLimitRequests < 1 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid rate_limit_requests: %d. Must be at least 1", s.RateLimitRequests),
		}
	}
	if s.RateLimitWindow <= 0 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid rate_limit_window: %g. Must be positive", s.RateLimitWindow),
		}
	}
	return nil
}

// RateLimited reports whether client-side rate limiting is on.
func (s *StravaSettings) RateLimited() bool {
	return s.RateLimitEnabled == nil || *s.RateLimitEnabled
}

// Timeout returns RequestTimeout as a duration.
func (s *StravaSettings) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// AuthSettings holds callback listener settings.
type AuthSettings struct {
	CallbackHost string `yaml:"callback_host"`
	Timeout      *int   `yaml:"timeout"` // seconds; 0 = wait forever, nil = default
}

// SetDefaults sets default values for AuthSettings.
func (a *AuthSettings) SetDefaults() {
	if a.CallbackHost == "" {
		a.CallbackHost = "localhost"
	}
	if a.Timeout == nil {
		timeout := 300
		a.Timeout = &timeout
	}
}

// Validate validates AuthSettings.
func (a *AuthSettings) Validate() error {
	if strings.ContainsAny(a.CallbackHost, "/: ") {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid auth.callback_host: %q. Must be a bare host name or address", a.CallbackHost),
		}
	}
	if a.Timeout != nil && *a.Timeout < 0 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid auth.timeout: %d. Must be 0 or greater", *a.Timeout),
		}
	}
	return nil
}

// WaitTimeout returns the callback wait bound; 0 means no bound.
func (a *AuthSettings) WaitTimeout() time.Duration {
	if a.Timeout == nil {
		return 0
	}
	return time.Duration(*a.Timeout) * time.Second
}

// SnapshotSettings holds the snapshot file location.
type SnapshotSettings struct {
	Path string `yaml:"path"`
}

// SetDefaults sets default values for SnapshotSettings.
func (s *SnapshotSettings) SetDefaults() {
	if s.Path == "" {
		s.Path = "activities.json"
	}
}

// SummarySettings controls how totals are reported.
type SummarySettings struct {
	Unit            string   `yaml:"unit"`
	DedupCategories []string `yaml:"dedup_categories"`
}

// SetDefaults sets default values for SummarySettings.
func (s *SummarySettings) SetDefaults() {
	if s.Unit == "" {
		s.Unit = "km"
	}
	if len(s.DedupCategories) == 0 {
		s.DedupCategories = []string{"Run"}
	}
}

// Validate validates SummarySettings.
func (s *SummarySettings) Validate() error {
	s.Unit = strings.ToLower(strings.TrimSpace(s.Unit))
	if s.Unit != "km" && s.Unit != "mi" {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid summary.unit: %s. Must be one of: km, mi", s.Unit),
		}
	}
	if slices.Contains(s.DedupCategories, "") {
		return &ConfigError{
			Message: "summary.dedup_categories must not contain empty entries",
		}
	}
	return nil
}

// TallyConfig represents the main configuration model.
type TallyConfig struct {
	Version  string           `yaml:"version"`
	Strava   StravaSettings   `yaml:"strava"`
	Auth     AuthSettings     `yaml:"auth"`
	Snapshot SnapshotSettings `yaml:"snapshot"`
	Summary  SummarySettings  `yaml:"summary"`

	// Digest identifies the file the config was loaded from; empty for defaults.
	Digest string `yaml:"-"`
}

// Validate sets defaults on every section and validates TallyConfig.
func (c *TallyConfig) Validate() error {
	if c.Version != Version {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid version: %s. Expected %s", c.Version, Version),
		}
	}

	c.Strava.SetDefaults()
	if err := c.Strava.Validate(); err != nil {
		return err
	}
	c.Auth.SetDefaults()
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	c.Snapshot.SetDefaults()
	c.Summary.SetDefaults()
	return c.Summary.Validate()
}

// DefaultConfig returns the built-in configuration used when no file exists.
func DefaultConfig() *TallyConfig {
	cfg := &TallyConfig{Version: Version}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("built-in configuration is invalid: %v", err))
	}
	return cfg
}
