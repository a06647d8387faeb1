package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/playback"
	"github.com/desertthunder/spotsync/internal/session"
	"github.com/desertthunder/spotsync/internal/tasks"
)

var (
	_ tea.Msg = snapshotMsg{}
	_ tea.Msg = sessionMsg{}
)

// snapshotMsg carries a playback snapshot published by the loop.
type snapshotMsg playback.Snapshot

// sessionMsg carries a session event published by the manager.
type sessionMsg session.Event

// tickMsg advances the interpolated progress bar.
type tickMsg struct{}

// commandDoneMsg reports the outcome of a transport command.
type commandDoneMsg struct {
	name string
	err  error
}

type playlistsFetchedMsg struct {
	playlists []models.SimplePlaylist
	err       error
}

type tracksFetchedMsg struct {
	playlist models.SimplePlaylist
	items    []models.PlaylistItem
	err      error
}

// progressMsg carries one update and the channel to wait on for the next.
type progressMsg struct {
	update tasks.ProgressUpdate
	ch     <-chan tasks.ProgressUpdate
}

// SnapshotMsg wraps s for [tea.Program.Send].
func SnapshotMsg(s playback.Snapshot) tea.Msg { return snapshotMsg(s) }

// SessionMsg wraps e for [tea.Program.Send].
func SessionMsg(e session.Event) tea.Msg { return sessionMsg(e) }
