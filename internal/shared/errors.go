package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization flow errors
	ErrEntropySourceUnavailable = fmt.Errorf("entropy source unavailable")
	ErrAuthorizationDenied      = fmt.Errorf("authorization denied")
	ErrTokenExchangeFailed      = fmt.Errorf("token exchange failed")
	ErrNoPendingAuthorization   = fmt.Errorf("no pending authorization")
	ErrStateMismatch            = fmt.Errorf("authorization state mismatch")

	// Token lifecycle errors
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrTokenRefreshFailed = fmt.Errorf("token refresh failed")
	ErrInvalidGrant       = fmt.Errorf("refresh token rejected (invalid_grant)")
	ErrCredentialStore    = fmt.Errorf("credential store failure")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// API and service errors
	ErrTransport          = fmt.Errorf("transport error")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrDeviceNotFound     = fmt.Errorf("device not found")

	// Playback and pagination errors
	ErrPollInProgress = fmt.Errorf("playback poll already in progress")
	ErrStalePoll      = fmt.Errorf("playback poll result superseded by a local edit")
	ErrSuperseded     = fmt.Errorf("fetch superseded by a newer request")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
