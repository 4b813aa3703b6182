package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAuthURL  = "https://www.strava.com/oauth/authorize"
	DefaultTokenURL = "https://www.strava.com/oauth/token"

	shutdownTimeout = 5 * time.Second
)

// DefaultScopes grants read access to all of the athlete's activities.
var DefaultScopes = []string{"read", "activity:read_all"}

var (
	// ErrTimeout is wrapped when no callback arrives within Config.Timeout.
	ErrTimeout = errors.New("timed out waiting for authorization")
	// ErrAccessDenied is wrapped when the user declines the authorization prompt.
	ErrAccessDenied = errors.New("access denied by user")
)

// Config holds the OAuth application and callback listener settings.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string

	// CallbackHost is the interface the listener binds to. The port is
	// always chosen by the OS.
	CallbackHost string
	// Timeout bounds the wait for the browser redirect. 0 waits until ctx ends.
	Timeout time.Duration
	// HTTPClient is used for the token exchange. Optional.
	HTTPClient *http.Client
}

// Opener is handed the authorization URL, typically to launch a browser.
type Opener func(authURL string) error

// AuthError is returned for every failure to obtain a token.
type AuthError struct {
	Message  string
	Original error
}

func (e *AuthError) Error() string {
	if e.Original != nil {
		return fmt.Sprintf("authorization failed: %s: %v", e.Message, e.Original)
	}
	return fmt.Sprintf("authorization failed: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Original
}

// AcquireToken runs the interactive authorization-code flow and returns a
// bearer access token.
//
// A listener is bound to an OS-assigned port before the authorization URL is
// built, so the redirect can never race the listener. The first request to
// /exchange_token carrying a code completes the wait; the listener is shut
// down before the code is exchanged, and on every error path. The code is
// single-use, so a failed exchange is not retried.
func AcquireToken(ctx context.Context, cfg *Config, open Opener) (string, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return "", &AuthError{Message: "client id and client secret are required"}
	}

	host := cfg.CallbackHost
	if host == "" {
		host = "localhost"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return "", &AuthError{Message: "failed to start callback listener", Original: err}
	}
	port := ln.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://localhost:%d%s", port, CallbackPath)

	state := uuid.NewString()
	cell := newCodeCell()
	srv := &http.Server{
		Handler:           newCallbackRouter(cell, state),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var (
		stopOnce sync.Once
		serveErr error
	)
	stop := func() {
		stopOnce.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("WARN: callback listener did not shut down cleanly: %v", err)
				_ = srv.Close()
			}
			serveErr = g.Wait()
		})
	}
	defer stop()

	oauthCfg := newOAuthConfig(cfg, redirectURL)
	authURL := oauthCfg.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
	log.Printf("INFO: waiting for authorization callback on %s", redirectURL)
	if open != nil {
		if err := open(authURL); err != nil {
			log.Printf("WARN: could not open authorization URL: %v", err)
		}
	}

	var timeout <-chan time.Time
	if cfg.Timeout > 0 {
		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var result callbackResult
	select {
	case result = <-cell.wait():
	case <-gctx.Done():
		stop()
		if err := ctx.Err(); err != nil {
			return "", &AuthError{Message: "cancelled while waiting for authorization", Original: err}
		}
		return "", &AuthError{Message: "callback listener failed", Original: serveErr}
	case <-timeout:
		return "", &AuthError{
			Message:  fmt.Sprintf("no authorization code received within %s", cfg.Timeout),
			Original: ErrTimeout,
		}
	}

	stop()
	if result.err != nil {
		return "", &AuthError{Message: "authorization was not granted", Original: result.err}
	}

	exchangeCtx := ctx
	if cfg.HTTPClient != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	token, err := oauthCfg.Exchange(exchangeCtx, result.code)
	if err != nil {
		return "", &AuthError{Message: "token exchange failed", Original: err}
	}
	return token.AccessToken, nil
}

func newOAuthConfig(cfg *Config, redirectURL string) *oauth2.Config {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURL,
		// Strava expects a comma separated scope list in a single parameter.
		Scopes: []string{strings.Join(scopes, ",")},
	}
}
