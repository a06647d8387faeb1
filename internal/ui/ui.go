package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/playback"
	"github.com/desertthunder/spotsync/internal/session"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/tasks"
)

const barWidth = 30

// ViewState represents the current view in the TUI.
type ViewState int

const (
	NowPlayingView ViewState = iota
	DevicesView
	PlaylistListView
	TrackListView
)

// Player is the part of [playback.Loop] the TUI drives.
type Player interface {
	Snapshot() playback.Snapshot
	RequestPoll()
	TogglePlayPause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	ToggleShuffle(ctx context.Context) error
	CycleRepeat(ctx context.Context) error
	PlayTrack(ctx context.Context, track models.Track, contextURI string) error
	TransferTo(ctx context.Context, deviceID string) error
}

// Library is the part of [tasks.PlaylistLoader] the TUI browses with.
type Library interface {
	Playlists(ctx context.Context, progress chan<- tasks.ProgressUpdate) ([]models.SimplePlaylist, error)
	Load(ctx context.Context, playlist models.SimplePlaylist, progress chan<- tasks.ProgressUpdate) ([]models.PlaylistItem, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	player       Player
	library      Library
	now          func() time.Time
	snapshot     playback.Snapshot
	sessionState session.State
	notice       string
	width        int
	height       int
	deviceList   list.Model
	playlistList list.Model
	trackList    list.Model
	playlists    []models.SimplePlaylist
	selected     *models.SimplePlaylist
	loading      bool
	progress     tasks.ProgressUpdate
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. library may be nil, which disables
// playlist browsing.
func NewModel(ctx context.Context, player Player, library Library, state session.State) *Model {
	return &Model{
		ctx:          ctx,
		view:         NowPlayingView,
		player:       player,
		library:      library,
		now:          time.Now,
		snapshot:     player.Snapshot(),
		sessionState: state,
		deviceList:   newList("Devices"),
		playlistList: newList("Playlists"),
		trackList:    newList("Tracks"),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Init starts the progress ticker and asks the loop for a fresh poll.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), func() tea.Msg {
		m.player.RequestPoll()
		return nil
	})
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, l := range []*list.Model{&m.deviceList, &m.playlistList, &m.trackList} {
			l.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tickMsg:
		return m, tick()

	case snapshotMsg:
		m.snapshot = playback.Snapshot(msg)
		if m.view == DevicesView {
			m.deviceList.SetItems(deviceItems(m.snapshot.Devices))
		}
		return m, nil

	case sessionMsg:
		m.handleSession(session.Event(msg))
		return m, nil

	case commandDoneMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s failed: %v", msg.name, msg.err)
		} else {
			m.notice = ""
		}
		return m, nil

	case progressMsg:
		m.progress = msg.update
		return m, waitForProgress(msg.ch)

	case playlistsFetchedMsg:
		m.loading = false
		if msg.err != nil {
			m.notice = fmt.Sprintf("failed to load playlists: %v", msg.err)
			return m, nil
		}
		m.playlists = msg.playlists
		m.playlistList.SetItems(playlistItems(msg.playlists))
		return m, nil

	case tracksFetchedMsg:
		if m.selected == nil || m.selected.ID != msg.playlist.ID || errors.Is(msg.err, shared.ErrSuperseded) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.notice = fmt.Sprintf("failed to load tracks: %v", msg.err)
			m.view = PlaylistListView
			return m, nil
		}
		m.trackList.SetItems(trackItems(msg.items))
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", msg.playlist.Name)
		m.trackList.ResetSelected()
		m.view = TrackListView
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case NowPlayingView:
			return m.handleNowPlayingKeys(msg)
		case DevicesView:
			return m.handleListKeys(msg, &m.deviceList, NowPlayingView, m.selectDevice)
		case PlaylistListView:
			return m.handleListKeys(msg, &m.playlistList, NowPlayingView, m.selectPlaylist)
		case TrackListView:
			return m.handleListKeys(msg, &m.trackList, PlaylistListView, m.selectTrack)
		}
	}

	return m.updateLists(msg)
}

func (m *Model) handleSession(ev session.Event) {
	m.sessionState = ev.State
	switch ev.Kind {
	case session.EventSignedOut:
		m.notice = "Signed out. Run `spotsync auth login` to sign in again."
	case session.EventRefreshFailed, session.EventAuthorizationFailed:
		if ev.State == session.Unauthenticated {
			m.notice = "Session expired. Run `spotsync auth login` to sign in again."
		} else if ev.Err != nil {
			m.notice = fmt.Sprintf("%s: %v", ev.Kind, ev.Err)
		}
	case session.EventAuthenticated:
		m.notice = ""
	}
}

func (m *Model) handleNowPlayingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		return m, m.command("play/pause", m.player.TogglePlayPause)
	case key.Matches(msg, m.keys.next):
		return m, m.command("next", m.player.Next)
	case key.Matches(msg, m.keys.previous):
		return m, m.command("previous", m.player.Previous)
	case key.Matches(msg, m.keys.shuffle):
		return m, m.command("shuffle", m.player.ToggleShuffle)
	case key.Matches(msg, m.keys.repeat):
		return m, m.command("repeat", m.player.CycleRepeat)
	case key.Matches(msg, m.keys.refresh):
		m.player.RequestPoll()
		return m, nil
	case key.Matches(msg, m.keys.devices):
		m.deviceList.SetItems(deviceItems(m.snapshot.Devices))
		m.view = DevicesView
		m.player.RequestPoll()
		return m, nil
	case key.Matches(msg, m.keys.playlists):
		if m.library == nil {
			return m, nil
		}
		m.view = PlaylistListView
		if m.playlists == nil && !m.loading {
			return m, m.fetchPlaylists()
		}
	}
	return m, nil
}

// handleListKeys routes keys for the list views. Keys go to the list
// unfiltered while the user is typing a filter.
func (m *Model) handleListKeys(msg tea.KeyMsg, l *list.Model, back ViewState, selectFn func(list.Item) tea.Cmd) (tea.Model, tea.Cmd) {
	if l.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back) && l.FilterState() == list.Unfiltered:
			m.view = back
			return m, nil
		case key.Matches(msg, m.keys.enter):
			if item := l.SelectedItem(); item != nil {
				return m, selectFn(item)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	*l, cmd = l.Update(msg)
	return m, cmd
}

func (m *Model) selectDevice(item list.Item) tea.Cmd {
	d, ok := item.(deviceItem)
	if !ok {
		return nil
	}
	m.view = NowPlayingView
	id := d.device.DeviceID()
	return m.command("transfer", func(ctx context.Context) error {
		return m.player.TransferTo(ctx, id)
	})
}

func (m *Model) selectPlaylist(item list.Item) tea.Cmd {
	pl, ok := item.(playlistItem)
	if !ok {
		return nil
	}
	playlist := pl.playlist
	m.selected = &playlist
	return m.fetchTracks(playlist)
}

func (m *Model) selectTrack(item list.Item) tea.Cmd {
	t, ok := item.(trackItem)
	if !ok || m.selected == nil {
		return nil
	}
	m.view = NowPlayingView
	track, contextURI := t.track, m.selected.URI
	return m.command("play", func(ctx context.Context) error {
		return m.player.PlayTrack(ctx, track, contextURI)
	})
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case DevicesView:
		m.deviceList, cmd = m.deviceList.Update(msg)
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

// command runs a playback command off the event loop. The loop publishes its
// optimistic snapshot while the call is in flight.
func (m *Model) command(name string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return commandDoneMsg{name: name, err: fn(ctx)}
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	m.loading = true
	ch := make(chan tasks.ProgressUpdate, 16)
	ctx, library := m.ctx, m.library

	fetch := func() tea.Msg {
		playlists, err := library.Playlists(ctx, ch)
		close(ch)
		return playlistsFetchedMsg{playlists: playlists, err: err}
	}
	return tea.Batch(fetch, waitForProgress(ch))
}

func (m *Model) fetchTracks(playlist models.SimplePlaylist) tea.Cmd {
	m.loading = true
	ch := make(chan tasks.ProgressUpdate, 16)
	ctx, library := m.ctx, m.library

	fetch := func() tea.Msg {
		items, err := library.Load(ctx, playlist, ch)
		close(ch)
		return tracksFetchedMsg{playlist: playlist, items: items, err: err}
	}
	return tea.Batch(fetch, waitForProgress(ch))
}

func waitForProgress(ch <-chan tasks.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg{update: update, ch: ch}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{} })
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case NowPlayingView:
		return m.renderNowPlaying()
	case DevicesView:
		return m.renderList(m.deviceList, m.keys.enter, m.keys.back, m.keys.quit)
	case PlaylistListView:
		if m.loading && len(m.playlists) == 0 {
			return m.renderLoading("Loading playlists")
		}
		return m.renderList(m.playlistList, m.keys.enter, m.keys.back, m.keys.quit)
	case TrackListView:
		return m.renderList(m.trackList, m.keys.enter, m.keys.back, m.keys.quit)
	default:
		return ""
	}
}

func (m *Model) renderNowPlaying() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("spotsync"))
	b.WriteString("\n")

	s := m.snapshot
	switch {
	case m.sessionState == session.Unauthenticated:
		b.WriteString(styles.warn.Render("Not signed in. Run `spotsync auth login`."))
		b.WriteString("\n")
	case !s.Active || s.Item == nil:
		b.WriteString(styles.help.Render("Nothing playing. Press d to pick a device."))
		b.WriteString("\n")
	default:
		b.WriteString(styles.track.Render(s.Item.Name))
		b.WriteString("\n")
		b.WriteString(s.Item.ArtistNames())
		if s.Item.Album.Name != "" {
			b.WriteString(" • " + s.Item.Album.Name)
		}
		b.WriteString("\n\n")

		icon := "⏸"
		if s.IsPlaying {
			icon = "▶"
		}
		progress := m.progressMS()
		fmt.Fprintf(&b, "%s %s %s %s\n", icon, formatDuration(progress), renderBar(progress, s.DurationMS, barWidth), formatDuration(s.DurationMS))

		shuffle := "off"
		if s.Shuffle {
			shuffle = "on"
		}
		fmt.Fprintf(&b, "shuffle: %s  repeat: %s\n", shuffle, s.Repeat)
	}

	if s.Device != nil {
		fmt.Fprintf(&b, "\n%s %s (%s)\n", styles.ok.Render("●"), s.Device.Name, s.Device.Type)
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(styles.err.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderList(l list.Model, keys ...key.Binding) string {
	view := l.View()
	if m.notice != "" {
		view = fmt.Sprintf("%s\n%s", view, styles.err.Render(m.notice))
	}
	return fmt.Sprintf("%s\n\n%s", view, m.help.ShortHelpView(keys))
}

func (m *Model) renderLoading(label string) string {
	status := label + "..."
	if m.progress.Step > 0 {
		status = fmt.Sprintf("%s (%d/%d)", label, m.progress.Step, m.progress.Total)
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s", styles.title.Render("Playlists"), status, helpView)
}

// progressMS estimates the playhead from the last snapshot, advancing it by
// the time elapsed since while playing.
func (m *Model) progressMS() int {
	s := m.snapshot
	progress := s.ProgressMS
	if s.IsPlaying && !s.UpdatedAt.IsZero() {
		progress += int(m.now().Sub(s.UpdatedAt).Milliseconds())
	}
	if s.DurationMS > 0 {
		progress = min(progress, s.DurationMS)
	}
	return max(progress, 0)
}

func renderBar(progress, duration, width int) string {
	filled := 0
	if duration > 0 {
		filled = min(progress*width/duration, width)
	}
	return styles.filled.Render(strings.Repeat("━", filled)) + styles.empty.Render(strings.Repeat("─", width-filled))
}

func formatDuration(ms int) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
