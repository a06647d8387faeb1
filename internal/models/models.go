// package models defines the Spotify Web API data model
package models

import (
	"fmt"
	"strings"
)

// Image is an artwork resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// Artist is a simplified artist object.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// Album is a simplified album object.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
	URI    string  `json:"uri,omitempty"`
}

// Track is a catalog track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
	URI        string   `json:"uri"`
}

// ArtistNames joins the track's artist names with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// String renders "Name - Artists".
func (t Track) String() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s - %s", t.Name, t.ArtistNames())
}

// Device is an output device Spotify Connect can play on.
type Device struct {
	ID               *string `json:"id"`
	IsActive         bool    `json:"is_active"`
	IsPrivateSession bool    `json:"is_private_session"`
	IsRestricted     bool    `json:"is_restricted"`
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	VolumePercent    *int    `json:"volume_percent"`
}

// DeviceID returns the device id or "" for devices that do not expose one.
func (d Device) DeviceID() string {
	if d.ID == nil {
		return ""
	}
	return *d.ID
}

// RepeatMode is the player's repeat_state.
type RepeatMode string

const (
	RepeatOff     RepeatMode = "off"
	RepeatContext RepeatMode = "context"
	RepeatTrack   RepeatMode = "track"
)

// Next cycles off -> context -> track -> off.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatOff, "":
		return RepeatContext
	case RepeatContext:
		return RepeatTrack
	default:
		return RepeatOff
	}
}

// ParseRepeatMode validates a user supplied repeat mode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch m := RepeatMode(strings.ToLower(s)); m {
	case RepeatOff, RepeatContext, RepeatTrack:
		return m, nil
	default:
		return "", fmt.Errorf("unknown repeat mode %q (want off, context or track)", s)
	}
}

// PlaybackContext is the playlist, album or artist playback was started from.
type PlaybackContext struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// PlaybackState is the body of GET /me/player.
type PlaybackState struct {
	Device       Device           `json:"device"`
	RepeatState  RepeatMode       `json:"repeat_state"`
	ShuffleState bool             `json:"shuffle_state"`
	IsPlaying    bool             `json:"is_playing"`
	ProgressMS   *int             `json:"progress_ms"`
	Item         *Track           `json:"item"`
	Context      *PlaybackContext `json:"context"`
}

// DevicesResponse is the body of GET /me/player/devices.
type DevicesResponse struct {
	Devices []Device `json:"devices"`
}

// Offset selects where in a context playback starts.
type Offset struct {
	Position *int   `json:"position,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// PlayRequest is the body of PUT /me/player/play.
type PlayRequest struct {
	ContextURI string   `json:"context_uri,omitempty"`
	URIs       []string `json:"uris,omitempty"`
	Offset     *Offset  `json:"offset,omitempty"`
	PositionMS *int     `json:"position_ms,omitempty"`
}

// Empty reports whether the request carries no body fields, which resumes playback.
func (p PlayRequest) Empty() bool {
	return p.ContextURI == "" && len(p.URIs) == 0 && p.Offset == nil && p.PositionMS == nil
}

// Page is the offset-based paging envelope. Next is nil on the last page.
type Page[T any] struct {
	Href     string  `json:"href"`
	Items    []T     `json:"items"`
	Limit    int     `json:"limit"`
	Next     *string `json:"next"`
	Offset   int     `json:"offset"`
	Previous *string `json:"previous"`
	Total    int     `json:"total"`
}

// HasNext reports whether another page follows.
func (p *Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// PlaylistItem is an entry of a playlist's track listing.
// Track is nil for entries that are no longer available.
type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	Track   *Track `json:"track"`
}

// Valid reports whether the item refers to a playable track.
func (i PlaylistItem) Valid() bool {
	return i.Track != nil && i.Track.ID != "" && i.Track.URI != ""
}

// Owner is a playlist owner.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// PlaylistTracksRef is the track count embedded in simplified playlists.
type PlaylistTracksRef struct {
	Href  string `json:"href"`
	Total int    `json:"total"`
}

// SimplePlaylist is a simplified playlist object, as listed by /me/playlists.
type SimplePlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	SnapshotID  string            `json:"snapshot_id"`
	Tracks      PlaylistTracksRef `json:"tracks"`
	Images      []Image           `json:"images"`
	URI         string            `json:"uri"`
}

// Valid reports whether the playlist has an identifier.
func (p SimplePlaylist) Valid() bool {
	return p.ID != ""
}

// User is the current user's profile.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	Country     string  `json:"country"`
	Product     string  `json:"product"`
	Images      []Image `json:"images"`
}

// SnapshotResponse is returned by playlist mutation endpoints.
type SnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// TrackURI is an entry of a playlist item removal request.
type TrackURI struct {
	URI string `json:"uri"`
}
