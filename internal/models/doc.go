// Package models defines the Spotify Web API data transfer objects shared by
// the REST client, the playback loop, the paginated fetcher and the cache.
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
//
//   - [Track], [Artist], [Album], [Image] : catalog objects
//   - [Device], [PlaybackState], [RepeatMode] : player state
//   - [Page] : the offset/limit envelope used by every paginated endpoint
//   - [PlaylistItem], [SimplePlaylist], [User] : library objects
//   - [PlayRequest] : body of the start/resume playback call
//   - [CachedPlaylist], [CachedTrack] : rows of the local playlist cache
package models
