package models

import "time"

// CachedPlaylist is a playlist row of the local track cache.
type CachedPlaylist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerID    string    `json:"owner_id"`
	SnapshotID string    `json:"snapshot_id"`
	TrackCount int       `json:"track_count"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// CachedTrack is one position of a cached playlist.
type CachedTrack struct {
	PlaylistID string `json:"playlist_id"`
	Position   int    `json:"position"`
	TrackID    string `json:"track_id"`
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Artists    string `json:"artists"`
	Album      string `json:"album"`
	DurationMS int    `json:"duration_ms"`
	AddedAt    string `json:"added_at"`
}

// NewCachedTrack flattens a playlist item for storage at position.
func NewCachedTrack(playlistID string, position int, item PlaylistItem) CachedTrack {
	t := item.Track
	return CachedTrack{
		PlaylistID: playlistID,
		Position:   position,
		TrackID:    t.ID,
		URI:        t.URI,
		Name:       t.Name,
		Artists:    t.ArtistNames(),
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
		AddedAt:    item.AddedAt,
	}
}
