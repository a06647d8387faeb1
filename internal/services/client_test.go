package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

// recordedRequest is what the fake Web API saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	f.mu.Unlock()

	if f.handler != nil {
		f.handler(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*SpotifyClient, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client := NewSpotifyClient(ClientOptions{
		BaseURL:         srv.URL + "/v1",
		HTTPClient:      srv.Client(),
		Tokens:          tu.StaticToken("test-token"),
		Logger:          shared.NewLogger(io.Discard),
		BreakerFailures: 3,
		BreakerTimeout:  time.Minute,
	})
	return client, api
}

func TestSpotifyClient(t *testing.T) {
	t.Run("Do", func(t *testing.T) {
		t.Run("Sends Bearer Token And Decodes", func(t *testing.T) {
			client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				tu.WriteJSON(t, w, http.StatusOK, map[string]string{"id": "user-1", "display_name": "Test"})
			})

			user, err := client.Me(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.ID != "user-1" || user.DisplayName != "Test" {
				t.Errorf("unexpected user %+v", user)
			}

			req := api.last()
			if req.Auth != "Bearer test-token" {
				t.Errorf("expected bearer token, got %q", req.Auth)
			}
			if req.Path != "/v1/me" {
				t.Errorf("expected /v1/me, got %s", req.Path)
			}
		})

		t.Run("API Error", func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "7")
				tu.WriteJSON(t, w, http.StatusTooManyRequests, map[string]any{
					"error": map[string]any{"status": 429, "message": "API rate limit exceeded"},
				})
			})

			_, err := client.Me(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "API rate limit exceeded" {
				t.Errorf("unexpected api error %+v", apiErr)
			}
			if apiErr.RetryAfter != 7*time.Second {
				t.Errorf("expected retry after 7s, got %v", apiErr.RetryAfter)
			}
			if !errors.Is(err, shared.ErrTransport) {
				t.Error("api errors should unwrap to ErrTransport")
			}
		})

		t.Run("Token Error Is Returned Unchanged", func(t *testing.T) {
			client, api := newTestClient(t, nil)
			client.tokens = tu.FailingToken{Err: shared.ErrNotAuthenticated}

			_, err := client.Me(context.Background())
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if api.count() != 0 {
				t.Error("no request should be sent without a token")
			}
		})

		t.Run("Transport Failure", func(t *testing.T) {
			client := NewSpotifyClient(ClientOptions{
				HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))},
				Tokens:     tu.StaticToken("t"),
				Logger:     shared.NewLogger(io.Discard),
			})

			_, err := client.Me(context.Background())
			if !errors.Is(err, shared.ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", err)
			}
		})

		t.Run("Body Read Failure", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
			client := NewSpotifyClient(ClientOptions{
				HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)},
				Tokens:     tu.StaticToken("t"),
				Logger:     shared.NewLogger(io.Discard),
			})

			_, err := client.Me(context.Background())
			if !errors.Is(err, shared.ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", err)
			}
		})

		t.Run("Malformed JSON", func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			})

			_, err := client.Me(context.Background())
			if !errors.Is(err, shared.ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", err)
			}
		})
	})

	t.Run("Circuit Breaker", func(t *testing.T) {
		t.Run("Opens After Server Failures", func(t *testing.T) {
			client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})

			for range 3 {
				if _, err := client.Me(context.Background()); !errors.Is(err, shared.ErrTransport) {
					t.Fatalf("expected ErrTransport, got %v", err)
				}
			}

			_, err := client.Me(context.Background())
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable once open, got %v", err)
			}
			if api.count() != 3 {
				t.Errorf("open breaker must not send requests, got %d", api.count())
			}
		})

		t.Run("Client Errors Do Not Trip", func(t *testing.T) {
			client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})

			for range 5 {
				client.Me(context.Background())
			}
			if api.count() != 5 {
				t.Errorf("4xx responses must not open the breaker, got %d requests", api.count())
			}
		})
	})

	t.Run("Rate Limiter Honors Context", func(t *testing.T) {
		api := &fakeAPI{}
		srv := httptest.NewServer(api)
		defer srv.Close()

		client := NewSpotifyClient(ClientOptions{
			BaseURL:           srv.URL,
			HTTPClient:        srv.Client(),
			Tokens:            tu.StaticToken("t"),
			Logger:            shared.NewLogger(io.Discard),
			RequestsPerSecond: 0.001,
			Burst:             1,
		})

		if err := client.Pause(context.Background(), ""); err != nil {
			t.Fatalf("first request should use the burst: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := client.Pause(ctx, ""); err == nil {
			t.Error("expected limiter wait to fail with the context")
		}
		if api.count() != 1 {
			t.Errorf("expected 1 request, got %d", api.count())
		}
	})

	t.Run("Raw", func(t *testing.T) {
		client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]int{"total": 3})
		})

		resp, err := client.Raw(context.Background(), http.MethodPost, "/me/echo", []byte(`{"a":1}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.IsJSON || resp.StatusCode != http.StatusOK {
			t.Errorf("unexpected response %+v", resp)
		}
		if string(api.last().Body) != `{"a":1}` {
			t.Errorf("unexpected body %s", api.last().Body)
		}
	})
}

func TestPlayerEndpoints(t *testing.T) {
	t.Run("PlaybackState No Content", func(t *testing.T) {
		client, _ := newTestClient(t, nil)

		state, err := client.PlaybackState(context.Background())
		if err != nil {
			t.Fatalf("204 is not an error: %v", err)
		}
		if state != nil {
			t.Errorf("expected nil state, got %+v", state)
		}
	})

	t.Run("PlaybackState", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{
				"is_playing":    true,
				"shuffle_state": true,
				"repeat_state":  "track",
				"item":          map[string]any{"id": "t1", "name": "Song", "uri": "spotify:track:t1"},
			})
		})

		state, err := client.PlaybackState(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !state.IsPlaying || state.RepeatState != models.RepeatTrack || state.Item.ID != "t1" {
			t.Errorf("unexpected state %+v", state)
		}
	})

	t.Run("Devices", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{
				"devices": []map[string]any{{"id": "d1", "name": "Phone", "type": "Smartphone", "is_active": true}},
			})
		})

		devices, err := client.Devices(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(devices) != 1 || devices[0].DeviceID() != "d1" {
			t.Errorf("unexpected devices %+v", devices)
		}
	})

	tc := []struct {
		name   string
		call   func(c *SpotifyClient) error
		method string
		path   string
		query  string
		body   string
	}{
		{
			name:   "Resume",
			call:   func(c *SpotifyClient) error { return c.Play(context.Background(), "", models.PlayRequest{}) },
			method: http.MethodPut, path: "/v1/me/player/play",
		},
		{
			name: "Play Track In Context",
			call: func(c *SpotifyClient) error {
				return c.Play(context.Background(), "d1", models.PlayRequest{
					ContextURI: "spotify:playlist:p",
					Offset:     &models.Offset{URI: "spotify:track:t"},
				})
			},
			method: http.MethodPut, path: "/v1/me/player/play", query: "device_id=d1",
			body: `{"context_uri":"spotify:playlist:p","offset":{"uri":"spotify:track:t"}}`,
		},
		{
			name:   "Pause",
			call:   func(c *SpotifyClient) error { return c.Pause(context.Background(), "") },
			method: http.MethodPut, path: "/v1/me/player/pause",
		},
		{
			name:   "Next",
			call:   func(c *SpotifyClient) error { return c.Next(context.Background(), "") },
			method: http.MethodPost, path: "/v1/me/player/next",
		},
		{
			name:   "Previous",
			call:   func(c *SpotifyClient) error { return c.Previous(context.Background(), "d2") },
			method: http.MethodPost, path: "/v1/me/player/previous", query: "device_id=d2",
		},
		{
			name:   "Shuffle",
			call:   func(c *SpotifyClient) error { return c.SetShuffle(context.Background(), "", true) },
			method: http.MethodPut, path: "/v1/me/player/shuffle", query: "state=true",
		},
		{
			name:   "Repeat",
			call:   func(c *SpotifyClient) error { return c.SetRepeat(context.Background(), "", models.RepeatContext) },
			method: http.MethodPut, path: "/v1/me/player/repeat", query: "state=context",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			client, api := newTestClient(t, nil)
			if err := tt.call(client); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			req := api.last()
			if req.Method != tt.method || req.Path != tt.path || req.Query != tt.query {
				t.Errorf("got %s %s?%s, want %s %s?%s", req.Method, req.Path, req.Query, tt.method, tt.path, tt.query)
			}
			if string(req.Body) != tt.body {
				t.Errorf("body = %s, want %s", req.Body, tt.body)
			}
		})
	}
}

func TestLibraryEndpoints(t *testing.T) {
	t.Run("PlaylistItems", func(t *testing.T) {
		client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{
				"items":  []map[string]any{{"added_at": "2024-01-01T00:00:00Z", "track": map[string]any{"id": "t1", "uri": "spotify:track:t1"}}},
				"limit":  50,
				"offset": 100,
				"total":  101,
				"next":   nil,
			})
		})

		page, err := client.PlaylistItems(context.Background(), "pl1", 100, 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 1 || page.HasNext() || page.Total != 101 {
			t.Errorf("unexpected page %+v", page)
		}
		if req := api.last(); req.Path != "/v1/playlists/pl1/tracks" || req.Query != "limit=50&offset=100" {
			t.Errorf("unexpected request %s?%s", req.Path, req.Query)
		}
	})

	t.Run("Playlist", func(t *testing.T) {
		client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{
				"id": "pl1", "name": "Mix", "snapshot_id": "s1", "tracks": map[string]int{"total": 12},
			})
		})

		playlist, err := client.Playlist(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if playlist.Name != "Mix" || playlist.Tracks.Total != 12 {
			t.Errorf("unexpected playlist %+v", playlist)
		}
		if req := api.last(); req.Path != "/v1/playlists/pl1" || !strings.HasPrefix(req.Query, "fields=") {
			t.Errorf("unexpected request %s?%s", req.Path, req.Query)
		}
	})

	t.Run("PlaylistItems Not Found", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not found."}})
		})

		_, err := client.PlaylistItems(context.Background(), "missing", 0, 50)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("UserPlaylists Clamps Limit", func(t *testing.T) {
		client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{"items": []any{}})
		})

		if _, err := client.UserPlaylists(context.Background(), 0, 500); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q := api.last().Query; q != "limit=50&offset=0" {
			t.Errorf("unexpected query %s", q)
		}
	})

	t.Run("AddTracks Batches", func(t *testing.T) {
		client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusCreated, map[string]string{"snapshot_id": "snap"})
		})

		uris := make([]string, 250)
		for i := range uris {
			uris[i] = "spotify:track:x"
		}

		snapshot, err := client.AddTracks(context.Background(), "pl1", uris)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snapshot != "snap" {
			t.Errorf("expected snapshot id, got %q", snapshot)
		}
		if api.count() != 3 {
			t.Errorf("expected 3 batches, got %d", api.count())
		}

		var body struct {
			URIs []string `json:"uris"`
		}
		json.Unmarshal(api.last().Body, &body)
		if len(body.URIs) != 50 {
			t.Errorf("expected final batch of 50, got %d", len(body.URIs))
		}
	})

	t.Run("AddTracks Requires URIs", func(t *testing.T) {
		client, _ := newTestClient(t, nil)
		if _, err := client.AddTracks(context.Background(), "pl1", nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("RemoveTracks", func(t *testing.T) {
		client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]string{"snapshot_id": "snap2"})
		})

		if _, err := client.RemoveTracks(context.Background(), "pl1", []string{"spotify:track:a"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		req := api.last()
		if req.Method != http.MethodDelete || string(req.Body) != `{"tracks":[{"uri":"spotify:track:a"}]}` {
			t.Errorf("unexpected request %s %s", req.Method, req.Body)
		}
	})

	t.Run("ReorderItem", func(t *testing.T) {
		client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]string{"snapshot_id": "snap3"})
		})

		if _, err := client.ReorderItem(context.Background(), "pl1", 4, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		req := api.last()
		if req.Method != http.MethodPut || string(req.Body) != `{"insert_before":0,"range_length":1,"range_start":4}` {
			t.Errorf("unexpected request %s %s", req.Method, req.Body)
		}

		if _, err := client.ReorderItem(context.Background(), "pl1", -1, 0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
