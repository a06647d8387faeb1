// Package ui implements an interactive terminal player using bubbletea's Elm architecture.
//
// The TUI is an observer of the session and the playback loop:
//  1. [NowPlayingView] : current track, progress, shuffle/repeat and device
//  2. [DevicesView] : pick a Spotify Connect device to move playback to
//  3. [PlaylistListView] : browse the user's playlists
//  4. [TrackListView] : start a track within its playlist
//
// [Watch] forwards playback snapshots and session events into a running
// [tea.Program]. Transport keys call the playback loop from a [tea.Cmd]; the
// loop's optimistic snapshot arrives back as a message before the remote call
// finishes, so the view reacts immediately.
//
// Playlist loading reports progress through a channel, read one update at a
// time by a waiting command.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
