package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotsync/internal/shared"
)

const DefaultBaseURL = "https://api.spotify.com/v1"

// TokenSource hands out a valid access token per request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ClientOptions configures a [SpotifyClient]. Tokens is required.
type ClientOptions struct {
	BaseURL           string
	HTTPClient        *http.Client
	Tokens            TokenSource
	Logger            *log.Logger
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   int
	BreakerTimeout    time.Duration
}

// SpotifyClient issues authenticated Web API calls. Every request resolves a
// fresh token, waits on a client-side rate limiter and runs inside a circuit
// breaker that opens after consecutive server-side failures.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *log.Logger
}

// APIError is a non-2xx Web API response.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Endpoint   string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("spotify API error: %s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error { return shared.ErrTransport }

// serverSide reports whether the error says something about the service's
// health rather than about the request.
func (e *APIError) serverSide() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type errorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIResponse is a raw Web API response.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

func NewSpotifyClient(opts ClientOptions) *SpotifyClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	logger := shared.WithLogger(opts.Logger, "component", "spotify")
	failures := uint32(opts.BreakerFailures)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "spotify-web-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.serverSide()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &SpotifyClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		limiter:    rate.NewLimiter(limit, opts.Burst),
		breaker:    breaker,
		logger:     logger,
	}
}

// Do performs an authenticated request against endpoint (relative to the base
// URL). body, when non-nil, is sent as JSON. result, when non-nil, receives the
// decoded response. The HTTP status is returned even when err is non-nil.
func (c *SpotifyClient) Do(ctx context.Context, method, endpoint string, query url.Values, body, result any) (int, error) {
	resp, err := c.send(ctx, method, endpoint, query, body)
	if err != nil {
		return statusOf(err), err
	}

	if result != nil && resp.StatusCode != http.StatusNoContent && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: failed to decode %s %s response: %v", shared.ErrTransport, method, endpoint, err)
		}
	}
	return resp.StatusCode, nil
}

// Raw performs an authenticated request and returns the undecoded response.
// Non-2xx statuses are reported as *APIError.
func (c *SpotifyClient) Raw(ctx context.Context, method, endpoint string, body []byte) (*APIResponse, error) {
	var payload any
	if len(body) > 0 {
		payload = json.RawMessage(body)
	}

	resp, err := c.send(ctx, method, endpoint, nil, payload)
	if err != nil {
		return nil, err
	}

	var jsonData any
	if err := json.Unmarshal(resp.Body, &jsonData); err == nil {
		resp.IsJSON = true
		resp.JSONData = jsonData
	}
	return resp, nil
}

func (c *SpotifyClient) send(ctx context.Context, method, endpoint string, query url.Values, body any) (*APIResponse, error) {
	if c.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, token, method, endpoint, query, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrServiceUnavailable, method, endpoint, err)
	}

	resp, _ := out.(*APIResponse)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.logger.Debug("request", "method", method, "endpoint", endpoint, "status", status, "elapsed", time.Since(start))

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *SpotifyClient) roundTrip(ctx context.Context, token, method, endpoint string, query url.Values, body any) (*APIResponse, error) {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrTransport, err)
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiResp, newAPIError(resp, data, method, endpoint)
	}
	return apiResp, nil
}

func newAPIError(resp *http.Response, data []byte, method, endpoint string) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Endpoint: endpoint}

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
