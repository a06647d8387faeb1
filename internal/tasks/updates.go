package tasks

import (
	"fmt"

	"github.com/desertthunder/spotsync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchTracks
	CachePlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchTracks:
		return "fetch_tracks"
	case CachePlaylist:
		return "cache_playlist"
	default:
		return ""
	}
}

// sendProgress sends update without blocking. Updates are dropped when the
// channel is nil or full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func pageUpdate(phase Phase, page, fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Fetched page %d (%d/%d)", page, fetched, total),
	}
}

func cachingUpdate(step, total int, pl models.SimplePlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CachePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Caching: %s...", step, total, pl.Name),
	}
}

func cacheCompletedUpdate(step, total int, res CacheEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CachePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, res.Playlist.Name, res.Tracks),
		Data:    res,
	}
}

func cacheFailedUpdate(step, total int, res CacheEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CachePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Playlist.Name, res.Err),
		Data:    res,
	}
}
