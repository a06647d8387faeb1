package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/spotsync/internal/credentials"
	"github.com/desertthunder/spotsync/internal/events"
	"github.com/desertthunder/spotsync/internal/pkce"
	"github.com/desertthunder/spotsync/internal/shared"
)

const (
	DefaultRefreshMargin  = 60 * time.Second
	DefaultRefreshTimeout = 15 * time.Second
	DefaultStoreKey       = "refreshToken"

	// Lifetime assumed when the token endpoint omits expires_in.
	defaultTokenLifetime = time.Hour

	refreshKey      = "refresh"
	errInvalidGrant = "invalid_grant"
)

// Options configures a [Manager]. OAuth and Store are required.
type Options struct {
	OAuth          *oauth2.Config
	Store          credentials.Store
	StoreKey       string
	HTTPClient     *http.Client
	Logger         *log.Logger
	RefreshMargin  time.Duration
	RefreshTimeout time.Duration
	Now            func() time.Time
	Entropy        io.Reader
}

// Manager is the single owner of the session. It serializes every token
// mutation (authorize, exchange, refresh, sign-out) and shares one in-flight
// refresh among all callers waiting for a token.
type Manager struct {
	config         *oauth2.Config
	store          credentials.Store
	key            string
	httpClient     *http.Client
	logger         *log.Logger
	margin         time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	entropy        io.Reader

	bus    *events.Bus[Event]
	flight singleflight.Group

	opMu    sync.Mutex
	mu      sync.RWMutex
	session Session
	pending *PendingAuthorization
}

// OAuthConfig builds the public-client OAuth2 configuration for cfg.
func OAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// NewManager creates a Manager in the Unauthenticated state.
func NewManager(opts Options) (*Manager, error) {
	if opts.OAuth == nil {
		return nil, fmt.Errorf("%w: oauth config is required", shared.ErrMissingConfig)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: credential store is required", shared.ErrMissingConfig)
	}

	m := &Manager{
		config:         opts.OAuth,
		store:          opts.Store,
		key:            opts.StoreKey,
		httpClient:     opts.HTTPClient,
		margin:         opts.RefreshMargin,
		refreshTimeout: opts.RefreshTimeout,
		now:            opts.Now,
		entropy:        opts.Entropy,
		bus:            events.NewBus[Event](),
	}

	if m.key == "" {
		m.key = DefaultStoreKey
	}
	if m.margin <= 0 {
		m.margin = DefaultRefreshMargin
	}
	if m.refreshTimeout <= 0 {
		m.refreshTimeout = DefaultRefreshTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.entropy == nil {
		m.entropy = rand.Reader
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	m.logger = shared.WithLogger(logger, "component", "session")

	return m, nil
}

// OnSessionChange subscribes fn to session events.
func (m *Manager) OnSessionChange(fn func(Event)) (unsubscribe func()) {
	return m.bus.Subscribe(fn)
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// State returns the current authorization state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State
}

// Pending returns the outstanding authorization request, if any.
func (m *Manager) Pending() (PendingAuthorization, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pending == nil {
		return PendingAuthorization{}, false
	}
	return *m.pending, true
}

// Start restores the session from the credential store. With a stored refresh
// token it refreshes silently; without one it settles in Unauthenticated.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	rt, ok, err := m.store.Read(ctx, m.key)
	if err != nil || !ok {
		m.mu.Lock()
		m.session = Session{State: Unauthenticated}
		m.mu.Unlock()
		m.opMu.Unlock()

		m.publish(EventUnauthenticated, err)
		return err
	}

	m.mu.Lock()
	m.session.RefreshToken = rt
	m.mu.Unlock()
	m.opMu.Unlock()

	m.logger.Debug("found stored refresh token, refreshing silently")
	_, err = m.sharedRefresh(ctx, true)
	return err
}

// Authorize starts a new authorization attempt and returns the URL the user
// must visit. Any earlier pending attempt is replaced, and callbacks carrying
// its state nonce are rejected from now on.
func (m *Manager) Authorize() (string, error) {
	m.opMu.Lock()

	pair, err := pkce.GenerateFrom(m.entropy)
	if err == nil {
		var nonce string
		if nonce, err = pkce.NewStateFrom(m.entropy); err == nil {
			m.mu.Lock()
			m.pending = &PendingAuthorization{Verifier: pair.Verifier, State: nonce, CreatedAt: m.now()}
			m.session.State = Authorizing
			m.mu.Unlock()
			m.opMu.Unlock()

			m.publish(EventAuthorizing, nil)
			return m.config.AuthCodeURL(nonce, oauth2.S256ChallengeOption(pair.Verifier)), nil
		}
	}

	m.mu.Lock()
	m.pending = nil
	m.session.State = m.settledState()
	m.mu.Unlock()
	m.opMu.Unlock()

	m.logger.Error("could not generate authorization request", "error", err)
	m.publish(EventAuthorizationFailed, err)
	return "", err
}

// Cancel abandons the pending authorization.
func (m *Manager) Cancel() error {
	m.opMu.Lock()
	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		m.opMu.Unlock()
		return shared.ErrNoPendingAuthorization
	}
	m.pending = nil
	m.session.State = m.settledState()
	m.mu.Unlock()
	m.opMu.Unlock()

	err := fmt.Errorf("%w: cancelled by user", shared.ErrAuthorizationDenied)
	m.publish(EventAuthorizationFailed, err)
	return nil
}

// ParseCallbackURL extracts the callback parameters from a redirect URL,
// whether it uses the loopback http scheme or a private scheme.
func ParseCallbackURL(raw string) (CallbackResult, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("%w: callback url: %v", shared.ErrInvalidInput, err)
	}
	q := u.Query()
	return CallbackResult{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}, nil
}

// CompleteAuthorization parses callbackURL and hands it to [Manager.Callback].
func (m *Manager) CompleteAuthorization(ctx context.Context, callbackURL string) error {
	res, err := ParseCallbackURL(callbackURL)
	if err != nil {
		return err
	}
	return m.Callback(ctx, res)
}

// Callback finishes the pending authorization with the redirect's parameters.
//
// A result whose state nonce does not match the pending request is rejected
// with ErrStateMismatch and leaves the pending request in place. Otherwise the
// pending request is consumed whatever the outcome.
func (m *Manager) Callback(ctx context.Context, res CallbackResult) error {
	m.opMu.Lock()

	m.mu.Lock()
	pending := m.pending
	if pending == nil {
		m.mu.Unlock()
		m.opMu.Unlock()
		return shared.ErrNoPendingAuthorization
	}
	if subtle.ConstantTimeCompare([]byte(res.State), []byte(pending.State)) != 1 {
		m.mu.Unlock()
		m.opMu.Unlock()
		m.logger.Warn("ignoring callback with unknown state")
		return shared.ErrStateMismatch
	}
	m.pending = nil
	m.mu.Unlock()

	kind, err := m.exchange(ctx, *pending, res)
	m.opMu.Unlock()

	m.publish(kind, err)
	return err
}

// exchange trades the authorization code for tokens. Callers hold opMu.
func (m *Manager) exchange(ctx context.Context, pending PendingAuthorization, res CallbackResult) (EventKind, error) {
	fail := func(err error) (EventKind, error) {
		m.mu.Lock()
		m.session.State = m.settledState()
		m.mu.Unlock()
		m.logger.Warn("authorization failed", "error", err)
		return EventAuthorizationFailed, err
	}

	switch {
	case res.Error != "":
		return fail(fmt.Errorf("%w: %s %s", shared.ErrAuthorizationDenied, res.Error, res.ErrorDescription))
	case res.Code == "":
		return fail(fmt.Errorf("%w: callback carried no code", shared.ErrAuthorizationDenied))
	}

	ctx, cancel := context.WithTimeout(m.clientContext(ctx), m.refreshTimeout)
	defer cancel()

	tok, err := m.config.Exchange(ctx, res.Code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return fail(fmt.Errorf("%w: %v", shared.ErrTokenExchangeFailed, err))
	}

	var storeErr error
	if tok.RefreshToken != "" {
		if storeErr = m.store.Save(ctx, m.key, tok.RefreshToken); storeErr != nil {
			m.logger.Warn("could not persist refresh token", "error", storeErr)
		}
	}

	m.mu.Lock()
	m.session = Session{
		AccessToken:  tok.AccessToken,
		Expiry:       m.expiry(tok),
		RefreshToken: tok.RefreshToken,
		State:        Authenticated,
	}
	m.mu.Unlock()

	m.logger.Info("authenticated")
	return EventAuthenticated, storeErr
}

// Token returns an access token that stays valid for at least the refresh
// margin, refreshing first when needed. Concurrent callers share one refresh;
// cancelling ctx abandons only this caller's wait.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	if s.Valid(m.now(), m.margin) {
		return s.AccessToken, nil
	}
	if s.RefreshToken == "" {
		return "", shared.ErrNotAuthenticated
	}
	return m.sharedRefresh(ctx, false)
}

// Refresh forces a token refresh through the same shared path as [Manager.Token].
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.sharedRefresh(ctx, true)
	return err
}

type refreshOutcome struct {
	token   string
	kind    EventKind
	err     error
	changed bool
}

func (m *Manager) sharedRefresh(ctx context.Context, force bool) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(refreshKey, func() (any, error) {
		out := m.refresh(detached, force)

		// Handlers may ask for a token; let them start a new flight instead
		// of joining this one.
		m.flight.Forget(refreshKey)
		if out.changed {
			m.publish(out.kind, out.err)
		}
		return out.token, out.err
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// refresh exchanges the refresh token for a new access token under opMu.
func (m *Manager) refresh(ctx context.Context, force bool) refreshOutcome {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	s := m.session
	if !force && s.Valid(m.now(), m.margin) {
		m.mu.Unlock()
		return refreshOutcome{token: s.AccessToken, kind: EventRefreshed}
	}
	if s.RefreshToken == "" {
		m.mu.Unlock()
		return refreshOutcome{kind: EventUnauthenticated, err: shared.ErrNotAuthenticated, changed: force}
	}
	m.session.State = Refreshing
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(m.clientContext(ctx), m.refreshTimeout)
	defer cancel()

	tok, err := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: s.RefreshToken}).Token()
	if err != nil {
		return m.refreshFailed(ctx, err)
	}

	rt := s.RefreshToken
	if tok.RefreshToken != "" && tok.RefreshToken != rt {
		if err := m.store.Save(ctx, m.key, tok.RefreshToken); err != nil {
			m.logger.Warn("could not persist rotated refresh token", "error", err)
		}
		rt = tok.RefreshToken
	}

	kind := EventRefreshed
	if s.AccessToken == "" {
		kind = EventAuthenticated
	}

	m.mu.Lock()
	m.session = Session{
		AccessToken:  tok.AccessToken,
		Expiry:       m.expiry(tok),
		RefreshToken: rt,
		State:        Authenticated,
	}
	m.mu.Unlock()

	m.logger.Debug("access token refreshed")
	return refreshOutcome{token: tok.AccessToken, kind: kind, changed: true}
}

func (m *Manager) refreshFailed(ctx context.Context, cause error) refreshOutcome {
	var re *oauth2.RetrieveError
	if errors.As(cause, &re) && re.ErrorCode == errInvalidGrant {
		if err := m.store.Delete(context.WithoutCancel(ctx), m.key); err != nil {
			m.logger.Warn("could not delete rejected refresh token", "error", err)
		}

		m.mu.Lock()
		m.session = Session{State: Unauthenticated}
		m.mu.Unlock()

		m.logger.Warn("refresh token rejected, sign in again")
		return refreshOutcome{kind: EventRefreshFailed, err: fmt.Errorf("%w: %s", shared.ErrInvalidGrant, re.ErrorDescription), changed: true}
	}

	m.mu.Lock()
	m.session.AccessToken = ""
	m.session.Expiry = time.Time{}
	m.session.State = Unauthenticated
	m.mu.Unlock()

	m.logger.Warn("token refresh failed", "error", cause)
	return refreshOutcome{kind: EventRefreshFailed, err: fmt.Errorf("%w: %v", shared.ErrTokenRefreshFailed, cause), changed: true}
}

// SignOut deletes the stored refresh token and clears the session.
func (m *Manager) SignOut(ctx context.Context) error {
	m.opMu.Lock()
	err := m.store.Delete(ctx, m.key)

	m.mu.Lock()
	m.session = Session{State: Unauthenticated}
	m.pending = nil
	m.mu.Unlock()
	m.opMu.Unlock()

	m.logger.Info("signed out")
	m.publish(EventSignedOut, err)
	return err
}

// settledState is where a failed or abandoned attempt lands. Callers hold mu.
func (m *Manager) settledState() State {
	if m.session.AccessToken != "" {
		return Authenticated
	}
	return Unauthenticated
}

func (m *Manager) expiry(tok *oauth2.Token) time.Time {
	if tok.ExpiresIn > 0 {
		return m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	return m.now().Add(defaultTokenLifetime)
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

func (m *Manager) publish(kind EventKind, err error) {
	m.bus.Publish(Event{Kind: kind, State: m.State(), Err: err, At: m.now()})
}
