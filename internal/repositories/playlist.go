package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// PlaylistRepository stores fetched playlists and their ordered tracks.
type PlaylistRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db, now: time.Now}
}

// ReplacePlaylist upserts the playlist row and swaps its track listing for
// items, in order. Items without a track are skipped.
func (r *PlaylistRepository) ReplacePlaylist(ctx context.Context, playlist models.SimplePlaylist, items []models.PlaylistItem) error {
	if playlist.ID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tracks := make([]models.CachedTrack, 0, len(items))
	for _, item := range items {
		if item.Track == nil {
			continue
		}
		tracks = append(tracks, models.NewCachedTrack(playlist.ID, len(tracks), item))
	}

	upsert := `
		INSERT INTO playlists (id, name, owner_id, snapshot_id, track_count, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			owner_id = excluded.owner_id,
			snapshot_id = excluded.snapshot_id,
			track_count = excluded.track_count,
			fetched_at = excluded.fetched_at
	`
	_, err = tx.ExecContext(ctx, upsert,
		playlist.ID,
		playlist.Name,
		playlist.Owner.ID,
		playlist.SnapshotID,
		len(tracks),
		r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", playlist.ID); err != nil {
		return fmt.Errorf("failed to clear playlist tracks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, position, track_id, uri, name, artists, album, duration_ms, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		_, err := stmt.ExecContext(ctx,
			t.PlaylistID,
			t.Position,
			t.TrackID,
			t.URI,
			t.Name,
			t.Artists,
			t.Album,
			t.DurationMS,
			t.AddedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert track %s: %w", t.URI, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist: %w", err)
	}
	return nil
}

// Get retrieves a cached playlist by ID
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.CachedPlaylist, error) {
	query := `
		SELECT id, name, owner_id, snapshot_id, track_count, fetched_at
		FROM playlists
		WHERE id = ?
	`

	p, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s is not cached", shared.ErrPlaylistNotFound, id)
	}
	return p, err
}

// List retrieves every cached playlist ordered by name
func (r *PlaylistRepository) List(ctx context.Context) ([]*models.CachedPlaylist, error) {
	query := `
		SELECT id, name, owner_id, snapshot_id, track_count, fetched_at
		FROM playlists
		ORDER BY name COLLATE NOCASE, id
	`
	return r.queryPlaylists(ctx, query)
}

// Containing retrieves the cached playlists that include uri
func (r *PlaylistRepository) Containing(ctx context.Context, uri string) ([]*models.CachedPlaylist, error) {
	query := `
		SELECT DISTINCT p.id, p.name, p.owner_id, p.snapshot_id, p.track_count, p.fetched_at
		FROM playlists p
		JOIN playlist_tracks pt ON pt.playlist_id = p.id
		WHERE pt.uri = ?
		ORDER BY p.name COLLATE NOCASE, p.id
	`
	return r.queryPlaylists(ctx, query, uri)
}

// Tracks retrieves a cached playlist's tracks in playlist order
func (r *PlaylistRepository) Tracks(ctx context.Context, playlistID string) ([]models.CachedTrack, error) {
	query := `
		SELECT playlist_id, position, track_id, uri, name, artists, album, duration_ms, added_at
		FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.CachedTrack
	for rows.Next() {
		var t models.CachedTrack
		err := rows.Scan(&t.PlaylistID, &t.Position, &t.TrackID, &t.URI, &t.Name, &t.Artists, &t.Album, &t.DurationMS, &t.AddedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playlist tracks: %w", err)
	}
	return tracks, nil
}

// Delete removes a cached playlist and, by cascade, its tracks
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s is not cached", shared.ErrPlaylistNotFound, id)
	}
	return nil
}

func (r *PlaylistRepository) queryPlaylists(ctx context.Context, query string, args ...any) ([]*models.CachedPlaylist, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.CachedPlaylist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playlists: %w", err)
	}
	return playlists, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(s scanner) (*models.CachedPlaylist, error) {
	var p models.CachedPlaylist
	err := s.Scan(&p.ID, &p.Name, &p.OwnerID, &p.SnapshotID, &p.TrackCount, &p.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return &p, nil
}
