// Package session owns the process's single Spotify session: the PKCE
// authorization flow, the access token's lifetime and the refresh token's
// persistence in a credential store.
package session

import (
	"fmt"
	"time"
)

// State is the authorization state of the session.
type State int

const (
	Unauthenticated State = iota
	Authorizing
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authorizing:
		return "authorizing"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is a snapshot of the current credentials.
type Session struct {
	AccessToken  string
	Expiry       time.Time
	RefreshToken string
	State        State
}

// Valid reports whether the access token may still be handed out at now,
// keeping margin in reserve before expiry.
func (s Session) Valid(now time.Time, margin time.Duration) bool {
	return s.AccessToken != "" && now.Before(s.Expiry.Add(-margin))
}

// PendingAuthorization is the verifier and state nonce of an authorization
// request that has been sent to the browser but not yet answered.
type PendingAuthorization struct {
	Verifier  string
	State     string
	CreatedAt time.Time
}

// CallbackResult carries the query parameters of the redirect back from the
// authorization server.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// EventKind identifies what happened to the session.
type EventKind int

const (
	EventUnauthenticated EventKind = iota
	EventAuthorizing
	EventAuthenticated
	EventRefreshed
	EventAuthorizationFailed
	EventRefreshFailed
	EventSignedOut
)

func (k EventKind) String() string {
	switch k {
	case EventUnauthenticated:
		return "unauthenticated"
	case EventAuthorizing:
		return "authorizing"
	case EventAuthenticated:
		return "authenticated"
	case EventRefreshed:
		return "refreshed"
	case EventAuthorizationFailed:
		return "authorization failed"
	case EventRefreshFailed:
		return "refresh failed"
	case EventSignedOut:
		return "signed out"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is published on every session transition.
type Event struct {
	Kind  EventKind
	State State
	Err   error
	At    time.Time
}
