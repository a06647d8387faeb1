package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/playback"
	"github.com/desertthunder/spotsync/internal/session"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/tasks"
)

type fakePlayer struct {
	mu       sync.Mutex
	snapshot playback.Snapshot
	calls    []string
	err      error
	polls    int
	track    models.Track
	playedIn string
	device   string
}

func (f *fakePlayer) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakePlayer) Snapshot() playback.Snapshot { return f.snapshot }
func (f *fakePlayer) RequestPoll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
}
func (f *fakePlayer) TogglePlayPause(context.Context) error { return f.record("toggle") }
func (f *fakePlayer) Next(context.Context) error            { return f.record("next") }
func (f *fakePlayer) Previous(context.Context) error        { return f.record("previous") }
func (f *fakePlayer) ToggleShuffle(context.Context) error   { return f.record("shuffle") }
func (f *fakePlayer) CycleRepeat(context.Context) error     { return f.record("repeat") }
func (f *fakePlayer) PlayTrack(_ context.Context, track models.Track, contextURI string) error {
	f.track, f.playedIn = track, contextURI
	return f.record("play")
}
func (f *fakePlayer) TransferTo(_ context.Context, deviceID string) error {
	f.device = deviceID
	return f.record("transfer")
}

type fakeLibrary struct {
	playlists []models.SimplePlaylist
	tracks    map[string][]models.PlaylistItem
	err       error
}

func (f *fakeLibrary) Playlists(_ context.Context, progress chan<- tasks.ProgressUpdate) ([]models.SimplePlaylist, error) {
	progress <- tasks.ProgressUpdate{Phase: tasks.FetchPlaylists, Step: len(f.playlists), Total: len(f.playlists)}
	return f.playlists, f.err
}

func (f *fakeLibrary) Load(_ context.Context, playlist models.SimplePlaylist, _ chan<- tasks.ProgressUpdate) ([]models.PlaylistItem, error) {
	return f.tracks[playlist.ID], f.err
}

func strPtr(s string) *string { return &s }

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and any batched commands, collecting their messages.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, run(c)...)
		}
		return msgs
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func feed(m *Model, msgs []tea.Msg) {
	for _, msg := range msgs {
		m.Update(msg)
	}
}

func newTestModel(player *fakePlayer, library Library) *Model {
	m := NewModel(context.Background(), player, library, session.Authenticated)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func playingSnapshot(at time.Time) playback.Snapshot {
	device := models.Device{ID: strPtr("dev-1"), Name: "Desk Speaker", Type: "Speaker", IsActive: true}
	return playback.Snapshot{
		Device:     &device,
		Devices:    []models.Device{device, {ID: strPtr("dev-2"), Name: "Phone", Type: "Smartphone"}},
		IsPlaying:  true,
		ProgressMS: 61_000,
		DurationMS: 180_000,
		Repeat:     models.RepeatContext,
		Item: &models.Track{
			ID:      "t1",
			Name:    "Heroes",
			Artists: []models.Artist{{Name: "David Bowie"}},
			Album:   models.Album{Name: "Heroes"},
			URI:     "spotify:track:t1",
		},
		Active:    true,
		UpdatedAt: at,
	}
}

func TestNowPlaying(t *testing.T) {
	t.Run("Renders Snapshot", func(t *testing.T) {
		at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		m := newTestModel(&fakePlayer{}, nil)
		m.now = func() time.Time { return at.Add(2 * time.Second) }

		m.Update(SnapshotMsg(playingSnapshot(at)))
		view := m.View()

		for _, want := range []string{"Heroes", "David Bowie", "1:03", "3:00", "repeat: context", "Desk Speaker"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q, got:\n%s", want, view)
			}
		}
	})

	t.Run("Nothing Playing", func(t *testing.T) {
		m := newTestModel(&fakePlayer{}, nil)
		if !strings.Contains(m.View(), "Nothing playing") {
			t.Errorf("expected idle message, got:\n%s", m.View())
		}
	})

	t.Run("Paused Progress Does Not Advance", func(t *testing.T) {
		at := time.Now()
		m := newTestModel(&fakePlayer{}, nil)
		s := playingSnapshot(at)
		s.IsPlaying = false
		m.Update(SnapshotMsg(s))
		m.now = func() time.Time { return at.Add(time.Minute) }

		if got := m.progressMS(); got != 61_000 {
			t.Errorf("expected 61000, got %d", got)
		}
	})

	t.Run("Progress Capped At Duration", func(t *testing.T) {
		at := time.Now()
		m := newTestModel(&fakePlayer{}, nil)
		m.Update(SnapshotMsg(playingSnapshot(at)))
		m.now = func() time.Time { return at.Add(time.Hour) }

		if got := m.progressMS(); got != 180_000 {
			t.Errorf("expected 180000, got %d", got)
		}
	})
}

func TestTransportKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want string
	}{
		{"Space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "toggle"},
		{"Next", keyRunes("n"), "next"},
		{"Previous", keyRunes("p"), "previous"},
		{"Shuffle", keyRunes("s"), "shuffle"},
		{"Repeat", keyRunes("r"), "repeat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &fakePlayer{}
			m := newTestModel(player, nil)

			_, cmd := m.Update(tt.key)
			feed(m, run(cmd))

			if len(player.calls) != 1 || player.calls[0] != tt.want {
				t.Errorf("expected [%s], got %v", tt.want, player.calls)
			}
			if m.notice != "" {
				t.Errorf("expected no notice, got %q", m.notice)
			}
		})
	}

	t.Run("Failure Shows Notice", func(t *testing.T) {
		player := &fakePlayer{err: errors.New("no active device")}
		m := newTestModel(player, nil)

		_, cmd := m.Update(keyRunes("n"))
		feed(m, run(cmd))

		if !strings.Contains(m.View(), "next failed: no active device") {
			t.Errorf("expected failure notice, got:\n%s", m.View())
		}
	})

	t.Run("Refresh Requests Poll", func(t *testing.T) {
		player := &fakePlayer{}
		m := newTestModel(player, nil)
		m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})

		if player.polls != 1 {
			t.Errorf("expected 1 poll request, got %d", player.polls)
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := newTestModel(&fakePlayer{}, nil)
		_, cmd := m.Update(keyRunes("q"))
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit command")
		}
	})
}

func TestSessionEvents(t *testing.T) {
	t.Run("Signed Out", func(t *testing.T) {
		m := newTestModel(&fakePlayer{}, nil)
		m.Update(SessionMsg(session.Event{Kind: session.EventSignedOut, State: session.Unauthenticated}))

		view := m.View()
		if !strings.Contains(view, "Not signed in") || !strings.Contains(view, "Signed out") {
			t.Errorf("expected signed out view, got:\n%s", view)
		}
	})

	t.Run("Refresh Failure Keeps Session", func(t *testing.T) {
		m := newTestModel(&fakePlayer{}, nil)
		m.Update(SessionMsg(session.Event{
			Kind:  session.EventRefreshFailed,
			State: session.Authenticated,
			Err:   shared.ErrTransport,
		}))

		if !strings.Contains(m.notice, "refresh failed") {
			t.Errorf("expected refresh notice, got %q", m.notice)
		}
		if m.sessionState != session.Authenticated {
			t.Errorf("expected authenticated, got %s", m.sessionState)
		}
	})

	t.Run("Authenticated Clears Notice", func(t *testing.T) {
		m := newTestModel(&fakePlayer{}, nil)
		m.notice = "Session expired."
		m.Update(SessionMsg(session.Event{Kind: session.EventAuthenticated, State: session.Authenticated}))

		if m.notice != "" {
			t.Errorf("expected notice cleared, got %q", m.notice)
		}
	})
}

func TestDevicesView(t *testing.T) {
	player := &fakePlayer{snapshot: playingSnapshot(time.Now())}
	m := newTestModel(player, nil)

	m.Update(keyRunes("d"))
	if m.view != DevicesView {
		t.Fatalf("expected devices view, got %d", m.view)
	}
	if !strings.Contains(m.View(), "Phone") {
		t.Errorf("expected device list, got:\n%s", m.View())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	feed(m, run(cmd))

	if player.device != "dev-2" {
		t.Errorf("expected transfer to dev-2, got %q", player.device)
	}
	if m.view != NowPlayingView {
		t.Errorf("expected now playing view, got %d", m.view)
	}

	t.Run("Escape Returns", func(t *testing.T) {
		m.Update(keyRunes("d"))
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != NowPlayingView {
			t.Errorf("expected now playing view, got %d", m.view)
		}
	})
}

func TestPlaylistBrowsing(t *testing.T) {
	mix := models.SimplePlaylist{ID: "pl-1", Name: "Mix", URI: "spotify:playlist:pl-1", Tracks: models.PlaylistTracksRef{Total: 2}}
	road := models.SimplePlaylist{ID: "pl-2", Name: "Road Trip", URI: "spotify:playlist:pl-2"}
	song := models.Track{ID: "t9", Name: "Song", URI: "spotify:track:t9"}
	library := &fakeLibrary{
		playlists: []models.SimplePlaylist{mix, road},
		tracks: map[string][]models.PlaylistItem{
			"pl-1": {{Track: &song}, {Track: nil}},
		},
	}

	t.Run("Select Track Plays In Context", func(t *testing.T) {
		player := &fakePlayer{}
		m := newTestModel(player, library)

		_, cmd := m.Update(keyRunes("l"))
		if !m.loading || !strings.Contains(m.View(), "Loading playlists") {
			t.Fatalf("expected loading view, got:\n%s", m.View())
		}
		feed(m, run(cmd))

		if m.loading || len(m.playlists) != 2 {
			t.Fatalf("expected 2 playlists loaded, got %d", len(m.playlists))
		}
		if m.progress.Phase != tasks.FetchPlaylists {
			t.Errorf("expected progress update, got %+v", m.progress)
		}

		_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		feed(m, run(cmd))

		if m.view != TrackListView {
			t.Fatalf("expected track list view, got %d", m.view)
		}
		if n := len(m.trackList.Items()); n != 1 {
			t.Errorf("expected 1 playable track, got %d", n)
		}

		_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		feed(m, run(cmd))

		if player.track.URI != song.URI || player.playedIn != mix.URI {
			t.Errorf("expected %s in %s, got %s in %s", song.URI, mix.URI, player.track.URI, player.playedIn)
		}
		if m.view != NowPlayingView {
			t.Errorf("expected now playing view, got %d", m.view)
		}
	})

	t.Run("Stale Tracks Ignored", func(t *testing.T) {
		m := newTestModel(&fakePlayer{}, library)
		m.view = PlaylistListView
		m.selected = &road

		m.Update(tracksFetchedMsg{playlist: mix, items: library.tracks["pl-1"]})
		if m.view != PlaylistListView {
			t.Errorf("expected stale result to be ignored, got view %d", m.view)
		}

		m.Update(tracksFetchedMsg{playlist: road, err: shared.ErrSuperseded})
		if m.view != PlaylistListView || m.notice != "" {
			t.Errorf("expected superseded result to be ignored, got view %d notice %q", m.view, m.notice)
		}
	})

	t.Run("Load Failure", func(t *testing.T) {
		m := newTestModel(&fakePlayer{}, &fakeLibrary{err: shared.ErrTransport})
		_, cmd := m.Update(keyRunes("l"))
		feed(m, run(cmd))

		if !strings.Contains(m.notice, "failed to load playlists") {
			t.Errorf("expected load notice, got %q", m.notice)
		}
	})

	t.Run("Without Library", func(t *testing.T) {
		m := newTestModel(&fakePlayer{}, nil)
		if _, cmd := m.Update(keyRunes("l")); cmd != nil || m.view != NowPlayingView {
			t.Error("expected playlists key to be ignored")
		}
	})
}

type fakeSource struct {
	snapshotFns []func(playback.Snapshot)
	sessionFns  []func(session.Event)
	removed     int
}

func (f *fakeSource) OnSnapshotChange(fn func(playback.Snapshot)) func() {
	f.snapshotFns = append(f.snapshotFns, fn)
	return func() { f.removed++ }
}

func (f *fakeSource) OnSessionChange(fn func(session.Event)) func() {
	f.sessionFns = append(f.sessionFns, fn)
	return func() { f.removed++ }
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := tea.NewProgram(newTestModel(&fakePlayer{}, nil), tea.WithContext(ctx))

	src := &fakeSource{}
	stop := Watch(p, src, src)

	if len(src.snapshotFns) != 1 || len(src.sessionFns) != 1 {
		t.Fatalf("expected one subscription per source, got %d and %d", len(src.snapshotFns), len(src.sessionFns))
	}

	// A program that is not running drops messages instead of blocking.
	src.snapshotFns[0](playback.Snapshot{})
	src.sessionFns[0](session.Event{})

	stop()
	if src.removed != 2 {
		t.Errorf("expected 2 unsubscribes, got %d", src.removed)
	}
}

func TestFormatting(t *testing.T) {
	t.Run("Duration", func(t *testing.T) {
		tests := map[int]string{0: "0:00", 59_999: "0:59", 61_000: "1:01", 3_600_000: "60:00"}
		for ms, want := range tests {
			if got := formatDuration(ms); got != want {
				t.Errorf("formatDuration(%d) = %s, want %s", ms, got, want)
			}
		}
	})

	t.Run("Bar", func(t *testing.T) {
		bar := renderBar(50, 100, 10)
		if strings.Count(bar, "━") != 5 || strings.Count(bar, "─") != 5 {
			t.Errorf("expected half filled bar, got %q", bar)
		}
		if empty := renderBar(10, 0, 4); strings.Count(empty, "─") != 4 {
			t.Errorf("expected empty bar for unknown duration, got %q", empty)
		}
	})
}
