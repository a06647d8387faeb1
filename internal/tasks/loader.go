package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const (
	userPlaylistsKey = "me/playlists"

	defaultWorkers = 4
	maxWorkers     = 10
)

// LibraryClient is the slice of the Web API client the loader needs.
type LibraryClient interface {
	UserPlaylists(ctx context.Context, offset, limit int) (*models.Page[models.SimplePlaylist], error)
	Playlist(ctx context.Context, playlistID string) (*models.SimplePlaylist, error)
	PlaylistItems(ctx context.Context, playlistID string, offset, limit int) (*models.Page[models.PlaylistItem], error)
}

// TrackCacher persists a playlist's full track listing.
type TrackCacher interface {
	ReplacePlaylist(ctx context.Context, playlist models.SimplePlaylist, items []models.PlaylistItem) error
}

// CacheEntry is the outcome of caching one playlist.
type CacheEntry struct {
	Playlist models.SimplePlaylist
	Tracks   int
	Err      error
}

// CacheResult summarizes [PlaylistLoader.CacheAll].
type CacheResult struct {
	Total     int
	Succeeded int
	Failed    int
	Entries   []CacheEntry
}

// PlaylistLoader loads the user's playlists and playlist tracks.
type PlaylistLoader struct {
	client    LibraryClient
	cache     TrackCacher
	logger    *log.Logger
	playlists *Fetcher[models.SimplePlaylist]
	tracks    *Fetcher[models.PlaylistItem]
}

// NewPlaylistLoader creates a loader. cache may be nil.
func NewPlaylistLoader(client LibraryClient, cache TrackCacher, logger *log.Logger) *PlaylistLoader {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistLoader{
		client:    client,
		cache:     cache,
		logger:    shared.WithLogger(logger, "component", "loader"),
		playlists: NewFetcher(FetchPlaylists, models.SimplePlaylist.Valid),
		tracks:    NewFetcher(FetchTracks, models.PlaylistItem.Valid),
	}
}

// Playlists fetches every playlist in the user's library.
func (l *PlaylistLoader) Playlists(ctx context.Context, progress chan<- ProgressUpdate) ([]models.SimplePlaylist, error) {
	return l.playlists.Fetch(ctx, userPlaylistsKey, Cursor{PageSize: DefaultPageSize},
		func(ctx context.Context, c Cursor) (*models.Page[models.SimplePlaylist], error) {
			return l.client.UserPlaylists(ctx, c.Offset, c.PageSize)
		}, progress)
}

// Tracks fetches every playable item of a playlist. A second call for the same
// playlist while one is running supersedes the first.
func (l *PlaylistLoader) Tracks(ctx context.Context, playlistID string, progress chan<- ProgressUpdate) ([]models.PlaylistItem, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	return l.tracks.Fetch(ctx, playlistID, Cursor{PageSize: DefaultPageSize},
		func(ctx context.Context, c Cursor) (*models.Page[models.PlaylistItem], error) {
			return l.client.PlaylistItems(ctx, playlistID, c.Offset, c.PageSize)
		}, progress)
}

// Load fetches a playlist's tracks and writes them to the cache, if any.
func (l *PlaylistLoader) Load(ctx context.Context, playlist models.SimplePlaylist, progress chan<- ProgressUpdate) ([]models.PlaylistItem, error) {
	items, err := l.Tracks(ctx, playlist.ID, progress)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.ReplacePlaylist(ctx, playlist, items); err != nil {
			l.logger.Warn("failed to cache playlist", "playlist", playlist.ID, "error", err)
		}
	}
	return items, nil
}

// LoadByID resolves the playlist's metadata and then loads it.
func (l *PlaylistLoader) LoadByID(ctx context.Context, playlistID string, progress chan<- ProgressUpdate) (*models.SimplePlaylist, []models.PlaylistItem, error) {
	if playlistID == "" {
		return nil, nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	playlist, err := l.client.Playlist(ctx, playlistID)
	if err != nil {
		return nil, nil, err
	}
	items, err := l.Load(ctx, *playlist, progress)
	if err != nil {
		return nil, nil, err
	}
	return playlist, items, nil
}

// CacheAll loads and caches playlists concurrently with a pool of workers.
// Unlike [PlaylistLoader.Load], a cache write failure counts as a failure.
// Failures are recorded per playlist and do not stop the others.
func (l *PlaylistLoader) CacheAll(ctx context.Context, progress chan<- ProgressUpdate, playlists []models.SimplePlaylist, workers int) *CacheResult {
	if workers <= 0 {
		workers = defaultWorkers
	}
	workers = min(workers, maxWorkers)

	result := &CacheResult{
		Total:   len(playlists),
		Entries: make([]CacheEntry, 0, len(playlists)),
	}

	jobs := make(chan models.SimplePlaylist)
	results := make(chan CacheEntry, len(playlists))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go l.cacheWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, pl := range playlists {
			select {
			case <-ctx.Done():
				return
			case jobs <- pl:
				sendProgress(progress, cachingUpdate(i+1, len(playlists), pl))
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Entries = append(result.Entries, res)

		if res.Err == nil {
			result.Succeeded++
			sendProgress(progress, cacheCompletedUpdate(completed, len(playlists), res))
		} else {
			result.Failed++
			sendProgress(progress, cacheFailedUpdate(completed, len(playlists), res))
		}
	}
	return result
}

func (l *PlaylistLoader) cacheWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan models.SimplePlaylist, results chan<- CacheEntry) {
	defer wg.Done()

	for pl := range jobs {
		items, err := l.Tracks(ctx, pl.ID, nil)
		if err == nil && l.cache != nil {
			err = l.cache.ReplacePlaylist(ctx, pl, items)
		}
		results <- CacheEntry{Playlist: pl, Tracks: len(items), Err: err}
	}
}
