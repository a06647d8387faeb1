// Package tasks fetches paginated Web API collections and caches playlists
// with real-time progress reporting.
//
// # Pagination
//
// [Fetcher] walks a collection page by page with an explicit [Cursor] until a
// page comes back without a next link. Each page goes through a [PageFunc],
// which resolves a fresh access token per request, so a token expiring midway
// is refreshed transparently. Items failing the fetcher's validity predicate
// (for example a playlist entry whose track was removed) are dropped.
//
// Fetches are keyed. Starting a fetch for a key that already has one in
// flight cancels the older one, which returns [shared.ErrSuperseded] and never
// delivers its items.
//
// # Progress Reporting
//
// All operations accept an optional progress channel. Sends use select with
// default, so a slow or absent reader never stalls a fetch.
//
// # Playlists
//
// [PlaylistLoader] composes fetchers with the Spotify client for the user's
// playlists and playlist tracks. An optional [TrackCacher]
// (repositories.PlaylistRepository) persists what was loaded; cache failures
// are logged and never fail the load.
package tasks
