package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/spotsync/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
	_ list.Item = deviceItem{}
)

// playlistItem wraps [models.SimplePlaylist] to implement [list.Item].
type playlistItem struct {
	playlist models.SimplePlaylist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.Tracks.Total)
	if i.playlist.Owner.DisplayName != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Owner.DisplayName)
	}
	return desc
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.String() }
func (i trackItem) Title() string       { return i.track.Name }
func (i trackItem) Description() string {
	desc := i.track.ArtistNames()
	if i.track.Album.Name != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album.Name)
	}
	return desc
}

// deviceItem wraps [models.Device] to implement [list.Item].
type deviceItem struct {
	device models.Device
}

func (i deviceItem) FilterValue() string { return i.device.Name }
func (i deviceItem) Title() string {
	if i.device.IsActive {
		return "● " + i.device.Name
	}
	return i.device.Name
}
func (i deviceItem) Description() string {
	if i.device.VolumePercent != nil {
		return fmt.Sprintf("%s • volume %d%%", i.device.Type, *i.device.VolumePercent)
	}
	return i.device.Type
}

func playlistItems(playlists []models.SimplePlaylist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}
	return items
}

func trackItems(entries []models.PlaylistItem) []list.Item {
	items := make([]list.Item, 0, len(entries))
	for _, e := range entries {
		if e.Track != nil {
			items = append(items, trackItem{track: *e.Track})
		}
	}
	return items
}

func deviceItems(devices []models.Device) []list.Item {
	items := make([]list.Item, len(devices))
	for i, d := range devices {
		items[i] = deviceItem{device: d}
	}
	return items
}
