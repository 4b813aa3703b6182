package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/gorilla/mux"
)

// CallbackPath is the single route the redirect lands on.
const CallbackPath = "/exchange_token"

// callbackResult is what the redirect delivered: a code, or the reason the
// user did not grant access.
type callbackResult struct {
	code string
	err  error
}

// codeCell is a single-assignment cell. Only the first deliver succeeds;
// the rest report false and never block.
type codeCell struct {
	once sync.Once
	ch   chan callbackResult
}

func newCodeCell() *codeCell {
	return &codeCell{ch: make(chan callbackResult, 1)}
}

func (c *codeCell) deliver(r callbackResult) bool {
	delivered := false
	c.once.Do(func() {
		c.ch <- r
		delivered = true
	})
	return delivered
}

// wait returns the channel the delivered result arrives on.
func (c *codeCell) wait() <-chan callbackResult {
	return c.ch
}

// newCallbackRouter builds the listener's only route. Requests whose state
// parameter does not match are rejected without touching the cell.
func newCallbackRouter(cell *codeCell, state string) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if state != "" && q.Get("state") != state {
			log.Printf("WARN: rejecting authorization callback with unexpected state")
			writeCallbackPage(w, http.StatusBadRequest, "Unexpected state parameter.")
			return
		}
		code := q.Get("code")
		denied := q.Get("error")

		var result callbackResult
		switch {
		case code != "":
			result = callbackResult{code: code}
		case denied != "":
			result = callbackResult{err: fmt.Errorf("%w: %s", ErrAccessDenied, denied)}
		default:
			writeCallbackPage(w, http.StatusBadRequest, "Missing code parameter.")
			return
		}

		if !cell.deliver(result) {
			log.Printf("WARN: ignoring repeated authorization callback")
			writeCallbackPage(w, http.StatusConflict, "Authorization was already received. You can close this window.")
			return
		}
		if result.err != nil {
			writeCallbackPage(w, http.StatusOK, "Authorization was denied. You can close this window.")
			return
		}
		writeCallbackPage(w, http.StatusOK, "Authorization complete. You can close this window.")
	}).Methods(http.MethodGet)

	return recoveryMiddleware(router)
}

func writeCallbackPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, message)
}

// recoveryMiddleware keeps a panicking request from taking down the listener.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if errors.Is(asError(err), http.ErrAbortHandler) {
					panic(err)
				}
				log.Printf("ERROR: panic in authorization callback: %v\n%s", err, debug.Stack())
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func asError(v interface{}) error {
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}
