package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotsync/internal/session"
	"github.com/desertthunder/spotsync/internal/shared"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

func TestRouter(t *testing.T) {
	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewRouter()
		router.Use(tag("first"), tag("second"))
		router.Handle("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Method Filtering", func(t *testing.T) {
		router := NewRouter()
		router.Handle("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Logging", func(t *testing.T) {
		var buf tu.SafeBuffer
		logger := shared.NewLogger(&buf)
		logger.SetLevel(log.DebugLevel)

		router := NewRouter()
		router.Use(Logging(logger))
		router.Handle("GET /teapot", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot?code=secret", nil))

		out := buf.String()
		if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/teapot") {
			t.Errorf("expected request to be logged, got %q", out)
		}
		if strings.Contains(out, "secret") {
			t.Error("query strings must not be logged")
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	serve := func(h *OAuthHandler, query string) *httptest.ResponseRecorder {
		router := NewRouter()
		router.Mount(h)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
		return rec
	}

	t.Run("Success", func(t *testing.T) {
		var got session.CallbackResult
		h := NewOAuthHandler("/callback", func(_ context.Context, res session.CallbackResult) error {
			got = res
			return nil
		})

		rec := serve(h, "code=abc&state=xyz")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
		if got.Code != "abc" || got.State != "xyz" {
			t.Errorf("unexpected callback result %+v", got)
		}

		select {
		case err := <-h.Result():
			if err != nil {
				t.Errorf("expected nil result, got %v", err)
			}
		default:
			t.Error("expected a result")
		}
	})

	t.Run("Denied", func(t *testing.T) {
		h := NewOAuthHandler("", func(_ context.Context, res session.CallbackResult) error {
			if res.Code == "" && res.Error == "access_denied" {
				return shared.ErrAuthorizationDenied
			}
			return nil
		})

		rec := serve(h, "error=access_denied&state=xyz")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if err := <-h.Result(); !errors.Is(err, shared.ErrAuthorizationDenied) {
			t.Errorf("expected ErrAuthorizationDenied, got %v", err)
		}
	})

	t.Run("Escapes Error Message", func(t *testing.T) {
		h := NewOAuthHandler("/callback", func(context.Context, session.CallbackResult) error {
			return errors.New("<script>alert(1)</script>")
		})

		rec := serve(h, "code=x&state=y")
		if strings.Contains(rec.Body.String(), "<script>") {
			t.Error("error message must be escaped")
		}
	})

	t.Run("Unknown State Keeps Waiting", func(t *testing.T) {
		calls := 0
		h := NewOAuthHandler("/callback", func(_ context.Context, res session.CallbackResult) error {
			calls++
			if res.State != "good" {
				return shared.ErrStateMismatch
			}
			return nil
		})

		if rec := serve(h, "code=abc&state=stale"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		select {
		case <-h.Result():
			t.Fatal("a stale callback must not end the flow")
		default:
		}

		serve(h, "code=abc&state=good")
		if err := <-h.Result(); err != nil {
			t.Errorf("expected success, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 callback attempts, got %d", calls)
		}
	})

	t.Run("Result Sent Once", func(t *testing.T) {
		h := NewOAuthHandler("/callback", func(context.Context, session.CallbackResult) error { return nil })

		serve(h, "code=a&state=s")
		serve(h, "code=b&state=s")

		n := 0
		for range h.Result() {
			n++
		}
		if n != 1 {
			t.Errorf("expected exactly one result, got %d", n)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	h := NewOAuthHandler("/callback", func(context.Context, session.CallbackResult) error { return nil })
	router := NewRouter()
	router.Mount(h)

	srv, err := Listen("127.0.0.1:0", router, shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/callback?code=abc&state=s")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	select {
	case err := <-h.Result():
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the callback")
	}

	if _, err := Listen(srv.Addr(), router, shared.NewLogger(io.Discard)); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected an error binding a used address, got %v", err)
	}
}
