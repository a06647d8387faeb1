// Package services implements the Spotify Web API client used by the playback
// loop, the paginated fetcher and the CLI.
//
// # Requests
//
// [SpotifyClient.Do] is the single request path. Each call:
//   - waits on a [rate.Limiter] sized from the [api] config section
//   - resolves a fresh access token from its [TokenSource] (the session manager),
//     so an expiring token is refreshed transparently between pages or polls
//   - runs inside a [gobreaker.CircuitBreaker] that opens after consecutive
//     5xx/429 responses or transport failures
//
// # Errors
//
//   - [APIError] : non-2xx response; wraps [shared.ErrTransport]
//   - [shared.ErrTransport] : network or decoding failure
//   - [shared.ErrServiceUnavailable] : the circuit breaker is open
//   - [shared.ErrPlaylistNotFound] : 404 from a playlist endpoint
//   - token errors from the [TokenSource] are returned unchanged
//
// # Endpoints
//
// Player: /me/player, /me/player/devices, play, pause, next, previous, shuffle, repeat.
// Library: /me, /me/playlists, /playlists/{id}/tracks (list, add, remove, reorder).
package services
