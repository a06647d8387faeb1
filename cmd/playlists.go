package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/formatter"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/tasks"
)

// trackProgress logs loader progress until the returned stop func is called.
// stop waits for pending updates to be logged.
func (r *Runner) trackProgress() (chan<- tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range ch {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	return ch, func() {
		close(ch)
		<-done
	}
}

// PlaylistsList lists every playlist in the user's library.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	progress, stop := r.trackProgress()
	playlists, err := r.loader.Playlists(ctx, progress)
	stop()
	if err != nil {
		return err
	}

	if limit := cmd.Int("limit"); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.Tracks.Total)
		if p.Owner.DisplayName != "" {
			r.writePlain("   Owner: %s\n", p.Owner.DisplayName)
		}
		r.writePlain("\n")
	}
	return nil
}

// PlaylistsTracks lists a playlist's playable tracks.
func (r *Runner) PlaylistsTracks(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	progress, stop := r.trackProgress()
	playlist, items, err := r.loader.LoadByID(ctx, id, progress)
	stop()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}

	r.writePlainHeader(playlist.Name)
	for i, item := range items {
		r.writePlain("%d. %s [%s]\n", i+1, item.Track, formatter.FormatDuration(item.Track.DurationMS))
		r.writePlain("   URI: %s\n", item.Track.URI)
	}
	return nil
}

// PlaylistsExport writes a playlist's tracks to a file, from Spotify or the cache.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var export *formatter.Export
	if cmd.Bool("cached") {
		if err := r.openCache(); err != nil {
			return err
		}
		cached, err := r.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		tracks, err := r.repo.Tracks(ctx, id)
		if err != nil {
			return err
		}
		export = formatter.FromCache(*cached, tracks)
	} else {
		if err := r.authenticate(ctx); err != nil {
			return err
		}
		progress, stop := r.trackProgress()
		playlist, items, err := r.loader.LoadByID(ctx, id, progress)
		stop()
		if err != nil {
			return err
		}
		export = formatter.FromPlaylist(*playlist, items)
	}

	path, err := formatter.Write(export, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("playlist exported", "path", path, "tracks", len(export.Tracks))
	r.writePlain("✓ Playlist exported to %s\n", path)
	r.writePlain("  Playlist: %s\n", export.Name)
	r.writePlain("  Tracks: %d\n", len(export.Tracks))
	return nil
}

// PlaylistsAdd appends track URIs to a playlist.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	id, uris, err := playlistEditArgs(cmd)
	if err != nil {
		return err
	}
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	snapshot, err := r.client.AddTracks(ctx, id, uris)
	if err != nil {
		return err
	}
	r.logger.Debug("tracks added", "playlist", id, "snapshot", snapshot)
	return r.writePlain("✓ Added %d tracks to %s\n", len(uris), id)
}

// PlaylistsRemove removes every occurrence of track URIs from a playlist.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	id, uris, err := playlistEditArgs(cmd)
	if err != nil {
		return err
	}
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	snapshot, err := r.client.RemoveTracks(ctx, id, uris)
	if err != nil {
		return err
	}
	r.logger.Debug("tracks removed", "playlist", id, "snapshot", snapshot)
	return r.writePlain("✓ Removed %d tracks from %s\n", len(uris), id)
}

// PlaylistsMove moves one playlist item.
func (r *Runner) PlaylistsMove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	from, before := cmd.Int("from"), cmd.Int("before")
	if _, err := r.client.ReorderItem(ctx, id, from, before); err != nil {
		return err
	}
	return r.writePlain("✓ Moved item %d before %d in %s\n", from, before, id)
}

func playlistEditArgs(cmd *cli.Command) (string, []string, error) {
	args := cmd.Args()
	if args.Len() < 2 {
		return "", nil, fmt.Errorf("%w: usage: %s %s", shared.ErrMissingArgument, cmd.Name, cmd.ArgsUsage)
	}
	return args.First(), args.Tail(), nil
}
