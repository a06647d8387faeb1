package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const (
	// MaxPageSize is the largest limit the paginated endpoints accept.
	MaxPageSize = 50
	// maxItemsPerWrite is the most URIs a single add/remove call accepts.
	maxItemsPerWrite = 100

	playlistFields = "id,name,description,owner(id,display_name),public,snapshot_id,tracks(href,total),uri"
)

func pageQuery(offset, limit int) url.Values {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
}

func playlistEndpoint(playlistID string) string {
	return "/playlists/" + url.PathEscape(playlistID) + "/tracks"
}

// notFound maps a 404 from a playlist endpoint to [shared.ErrPlaylistNotFound].
func notFound(err error, playlistID string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return err
}

// Me retrieves the current user's profile.
func (c *SpotifyClient) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if _, err := c.Do(ctx, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (c *SpotifyClient) UserPlaylists(ctx context.Context, offset, limit int) (*models.Page[models.SimplePlaylist], error) {
	var page models.Page[models.SimplePlaylist]
	if _, err := c.Do(ctx, http.MethodGet, "/me/playlists", pageQuery(offset, limit), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Playlist retrieves a playlist's metadata without its track listing.
func (c *SpotifyClient) Playlist(ctx context.Context, playlistID string) (*models.SimplePlaylist, error) {
	var playlist models.SimplePlaylist
	query := url.Values{"fields": {playlistFields}}
	if _, err := c.Do(ctx, http.MethodGet, "/playlists/"+url.PathEscape(playlistID), query, nil, &playlist); err != nil {
		return nil, notFound(err, playlistID)
	}
	return &playlist, nil
}

// PlaylistItems retrieves one page of a playlist's tracks.
func (c *SpotifyClient) PlaylistItems(ctx context.Context, playlistID string, offset, limit int) (*models.Page[models.PlaylistItem], error) {
	var page models.Page[models.PlaylistItem]
	if _, err := c.Do(ctx, http.MethodGet, playlistEndpoint(playlistID), pageQuery(offset, limit), nil, &page); err != nil {
		return nil, notFound(err, playlistID)
	}
	return &page, nil
}

// AddTracks appends uris to the playlist, in batches of 100, and returns the
// final snapshot id.
func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("%w: no track uris", shared.ErrMissingArgument)
	}

	var snapshot string
	for batch := range slices.Chunk(uris, maxItemsPerWrite) {
		var resp models.SnapshotResponse
		body := map[string]any{"uris": batch}
		if _, err := c.Do(ctx, http.MethodPost, playlistEndpoint(playlistID), nil, body, &resp); err != nil {
			return "", notFound(err, playlistID)
		}
		snapshot = resp.SnapshotID
	}
	return snapshot, nil
}

// RemoveTracks removes every occurrence of uris from the playlist.
func (c *SpotifyClient) RemoveTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("%w: no track uris", shared.ErrMissingArgument)
	}

	var snapshot string
	for batch := range slices.Chunk(uris, maxItemsPerWrite) {
		tracks := make([]models.TrackURI, len(batch))
		for i, uri := range batch {
			tracks[i] = models.TrackURI{URI: uri}
		}

		var resp models.SnapshotResponse
		body := map[string]any{"tracks": tracks}
		if _, err := c.Do(ctx, http.MethodDelete, playlistEndpoint(playlistID), nil, body, &resp); err != nil {
			return "", notFound(err, playlistID)
		}
		snapshot = resp.SnapshotID
	}
	return snapshot, nil
}

// ReorderItem moves the item at rangeStart so it sits before insertBefore.
func (c *SpotifyClient) ReorderItem(ctx context.Context, playlistID string, rangeStart, insertBefore int) (string, error) {
	if rangeStart < 0 || insertBefore < 0 {
		return "", fmt.Errorf("%w: positions must be non-negative", shared.ErrInvalidArgument)
	}

	body := map[string]int{
		"range_start":   rangeStart,
		"insert_before": insertBefore,
		"range_length":  1,
	}
	var resp models.SnapshotResponse
	if _, err := c.Do(ctx, http.MethodPut, playlistEndpoint(playlistID), nil, body, &resp); err != nil {
		return "", notFound(err, playlistID)
	}
	return resp.SnapshotID, nil
}
