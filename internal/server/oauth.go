package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/spotsync/internal/session"
	"github.com/desertthunder/spotsync/internal/shared"
)

const exchangeTimeout = 30 * time.Second

// CallbackFunc completes an authorization from the redirect's parameters.
type CallbackFunc func(ctx context.Context, res session.CallbackResult) error

// OAuthHandler handles the authorization redirect.
type OAuthHandler struct {
	path     string
	complete CallbackFunc
	result   chan error
	once     sync.Once
}

// NewOAuthHandler creates a handler for redirects to path.
func NewOAuthHandler(path string, complete CallbackFunc) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		path:     path,
		complete: complete,
		result:   make(chan error, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET " + h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := session.CallbackResult{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	// The exchange outlives the browser connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), exchangeTimeout)
	defer cancel()

	err := h.complete(ctx, res)
	switch {
	case errors.Is(err, shared.ErrStateMismatch), errors.Is(err, shared.ErrNoPendingAuthorization):
		http.Error(w, "Unknown or expired authorization request", http.StatusBadRequest)
		return
	case err != nil:
		h.send(err)
		writePage(w, http.StatusBadRequest, "Authorization Failed", html.EscapeString(err.Error()))
	default:
		h.send(nil)
		writePage(w, http.StatusOK, "✓ Authorization Successful", "You can close this window and return to the terminal.")
	}
}

// send delivers the outcome (only once).
func (h *OAuthHandler) send(err error) {
	h.once.Do(func() {
		h.result <- err
		close(h.result)
	})
}

// Result receives exactly one outcome and is then closed.
func (h *OAuthHandler) Result() <-chan error {
	return h.result
}

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>
`, title, message)
}
