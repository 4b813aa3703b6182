package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// tokenServer is a fake token endpoint recording the submitted form.
type tokenServer struct {
	mu     sync.Mutex
	form   url.Values
	calls  int
	status int
	body   string
}

func (s *tokenServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.form = r.PostForm
	s.calls++
	s.mu.Unlock()

	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s.body))
}

// redirectingOpener simulates the browser: it follows the authorization URL
// back to the local callback with the given query parameters.
func redirectingOpener(t *testing.T, params url.Values, seen *url.URL, listenerAddr *string) Opener {
	t.Helper()
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		*seen = *u
		redirect := u.Query().Get("redirect_uri")
		ru, err := url.Parse(redirect)
		if err != nil {
			return err
		}
		*listenerAddr = ru.Host

		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		if !q.Has("state") {
			q.Set("state", u.Query().Get("state"))
		}
		go func() {
			resp, err := http.Get(redirect + "?" + q.Encode())
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func testConfig(tokenURL string) *Config {
	return &Config{
		ClientID:     "12345",
		ClientSecret: "s3cret",
		AuthURL:      "https://auth.example.com/oauth/authorize",
		TokenURL:     tokenURL,
		Scopes:       []string{"read", "activity:read_all"},
		Timeout:      5 * time.Second,
	}
}

func assertListenerClosed(t *testing.T, addr string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	if err == nil {
		conn.Close()
		t.Errorf("callback listener on %s is still accepting connections", addr)
	}
}

func TestAcquireToken_Success(t *testing.T) {
	ts := &tokenServer{body: `{"token_type":"Bearer","access_token":"abc123","expires_at":1700000000,"refresh_token":"r"}`}
	srv := httptest.NewServer(ts)
	defer srv.Close()

	var authURL url.URL
	var listenerAddr string
	open := redirectingOpener(t, url.Values{"code": {"one-time-code"}}, &authURL, &listenerAddr)

	token, err := AcquireToken(context.Background(), testConfig(srv.URL), open)
	if err != nil {
		t.Fatalf("AcquireToken() failed: %v", err)
	}
	if token != "abc123" {
		t.Errorf("token = %q, want abc123", token)
	}

	q := authURL.Query()
	if q.Get("client_id") != "12345" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	if q.Get("scope") != "read,activity:read_all" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("approval_prompt") != "force" {
		t.Errorf("approval_prompt = %q", q.Get("approval_prompt"))
	}
	redirect, _ := url.Parse(q.Get("redirect_uri"))
	if redirect.Hostname() != "localhost" || redirect.Path != CallbackPath || redirect.Port() == "" || redirect.Port() == "0" {
		t.Errorf("redirect_uri = %s", redirect)
	}

	ts.mu.Lock()
	form := ts.form
	calls := ts.calls
	ts.mu.Unlock()
	if calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", calls)
	}
	for key, want := range map[string]string{
		"client_id":     "12345",
		"client_secret": "s3cret",
		"code":          "one-time-code",
		"grant_type":    "authorization_code",
	} {
		if got := form.Get(key); got != want {
			t.Errorf("token form %s = %q, want %q", key, got, want)
		}
	}

	assertListenerClosed(t, listenerAddr)
}

func TestAcquireToken_ExchangeRejected(t *testing.T) {
	ts := &tokenServer{status: http.StatusBadRequest, body: `{"message":"Bad Request","errors":[{"resource":"AuthorizationCode","code":"invalid"}]}`}
	srv := httptest.NewServer(ts)
	defer srv.Close()

	var authURL url.URL
	var listenerAddr string
	open := redirectingOpener(t, url.Values{"code": {"used-code"}}, &authURL, &listenerAddr)

	_, err := AcquireToken(context.Background(), testConfig(srv.URL), open)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
	if !strings.Contains(authErr.Message, "token exchange") {
		t.Errorf("Message = %q, want token exchange failure", authErr.Message)
	}
	if n := ts.callCount(); n != 1 {
		t.Errorf("token endpoint called %d times, want exactly 1 (no retry)", n)
	}
	assertListenerClosed(t, listenerAddr)
}

func TestAcquireToken_MalformedTokenResponse(t *testing.T) {
	ts := &tokenServer{body: `{"token_type":"Bearer"}`}
	srv := httptest.NewServer(ts)
	defer srv.Close()

	var authURL url.URL
	var listenerAddr string
	open := redirectingOpener(t, url.Values{"code": {"c"}}, &authURL, &listenerAddr)

	_, err := AcquireToken(context.Background(), testConfig(srv.URL), open)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError for missing access_token, got %v", err)
	}
}

func TestAcquireToken_AccessDenied(t *testing.T) {
	ts := &tokenServer{body: `{"access_token":"never"}`}
	srv := httptest.NewServer(ts)
	defer srv.Close()

	var authURL url.URL
	var listenerAddr string
	open := redirectingOpener(t, url.Values{"error": {"access_denied"}}, &authURL, &listenerAddr)

	_, err := AcquireToken(context.Background(), testConfig(srv.URL), open)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("AcquireToken() error = %v, want ErrAccessDenied", err)
	}
	if n := ts.callCount(); n != 0 {
		t.Errorf("token endpoint called %d times after denial", n)
	}
	assertListenerClosed(t, listenerAddr)
}

func TestAcquireToken_Timeout(t *testing.T) {
	var listenerAddr string
	open := func(authURL string) error {
		u, _ := url.Parse(authURL)
		ru, _ := url.Parse(u.Query().Get("redirect_uri"))
		listenerAddr = ru.Host
		return nil
	}

	cfg := testConfig("http://127.0.0.1:1/token")
	cfg.Timeout = 50 * time.Millisecond

	_, err := AcquireToken(context.Background(), cfg, open)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("AcquireToken() error = %v, want ErrTimeout", err)
	}
	assertListenerClosed(t, listenerAddr)
}

func TestAcquireToken_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	open := func(string) error {
		cancel()
		return nil
	}
	cfg := testConfig("http://127.0.0.1:1/token")
	cfg.Timeout = 0

	_, err := AcquireToken(ctx, cfg, open)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AcquireToken() error = %v, want context.Canceled", err)
	}
}

func TestAcquireToken_OpenerFailureKeepsWaiting(t *testing.T) {
	ts := &tokenServer{body: `{"access_token":"tok"}`}
	srv := httptest.NewServer(ts)
	defer srv.Close()

	var authURL url.URL
	var listenerAddr string
	follow := redirectingOpener(t, url.Values{"code": {"c"}}, &authURL, &listenerAddr)
	open := func(u string) error {
		if err := follow(u); err != nil {
			return err
		}
		return errors.New("no browser available")
	}

	token, err := AcquireToken(context.Background(), testConfig(srv.URL), open)
	if err != nil {
		t.Fatalf("AcquireToken() failed: %v", err)
	}
	if token != "tok" {
		t.Errorf("token = %q, want tok", token)
	}
}

func TestAcquireToken_MissingCredentials(t *testing.T) {
	_, err := AcquireToken(context.Background(), &Config{ClientID: "id"}, nil)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
}

func TestAuthError(t *testing.T) {
	original := errors.New("network error")
	err := &AuthError{Message: "token exchange failed", Original: original}
	if err.Error() == "" {
		t.Error("AuthError.Error() should return non-empty string")
	}
	if err.Unwrap() != original {
		t.Error("Unwrap() should return original error")
	}
	if (&AuthError{Message: "x"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no original error")
	}
}
