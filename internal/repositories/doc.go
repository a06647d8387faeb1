// Package repositories implements SQLite persistence for the playlist track cache.
//
// The cache holds what tasks.PlaylistLoader last fetched so the CLI and TUI
// can list playlist contents without a round trip. A playlist's tracks are
// always replaced wholesale inside one transaction, so a reader never sees a
// half-written listing.
//
// Key Implementations:
//   - [PlaylistRepository] : playlist rows plus ordered track listings; implements tasks.TrackCacher
//
// Credentials never live here; the refresh token stays in the credential store.
package repositories
