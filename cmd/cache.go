package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// CacheSync fetches playlists into the local cache with a worker pool.
//
// Without ids every playlist in the library is cached.
func (r *Runner) CacheSync(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}
	if err := r.openCache(); err != nil {
		return err
	}

	var playlists []models.SimplePlaylist
	if ids := cmd.Args().Slice(); len(ids) > 0 {
		for _, id := range ids {
			playlist, err := r.client.Playlist(ctx, id)
			if err != nil {
				return err
			}
			playlists = append(playlists, *playlist)
		}
	} else {
		progress, stop := r.trackProgress()
		all, err := r.loader.Playlists(ctx, progress)
		stop()
		if err != nil {
			return err
		}
		playlists = all
	}

	progress, stop := r.trackProgress()
	result := r.loader.CacheAll(ctx, progress, playlists, cmd.Int("workers"))
	stop()

	r.writePlainHeader("Cache Sync")
	r.writePlain("Total: %d  Succeeded: %d  Failed: %d\n", result.Total, result.Succeeded, result.Failed)
	for _, entry := range result.Entries {
		if entry.Err != nil {
			r.writePlain("✗ %s: %v\n", entry.Playlist.Name, entry.Err)
		}
	}

	if result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d playlists failed to cache", shared.ErrTransport, result.Failed, result.Total)
	}
	return nil
}

// CacheList lists cached playlists.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if err := r.openCache(); err != nil {
		return err
	}

	playlists, err := r.repo.List(ctx)
	if err != nil {
		return err
	}
	return r.writeCached(cmd, playlists)
}

// CacheFind lists cached playlists containing a track URI.
func (r *Runner) CacheFind(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("uri")
	if uri == "" {
		return fmt.Errorf("%w: track uri", shared.ErrMissingArgument)
	}
	if err := r.openCache(); err != nil {
		return err
	}

	playlists, err := r.repo.Containing(ctx, uri)
	if err != nil {
		return err
	}
	return r.writeCached(cmd, playlists)
}

// CacheDrop removes a playlist and its tracks from the cache.
func (r *Runner) CacheDrop(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if err := r.openCache(); err != nil {
		return err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s from the cache\n", id)
}

func (r *Runner) writeCached(cmd *cli.Command, playlists []*models.CachedPlaylist) error {
	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		return r.writePlain("No cached playlists.\n")
	}
	for _, p := range playlists {
		r.writePlain("%s (%d tracks)\n", p.Name, p.TrackCount)
		r.writePlain("   ID: %s  Fetched: %s\n", p.ID, p.FetchedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
