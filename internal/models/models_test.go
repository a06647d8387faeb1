package models

import (
	"encoding/json"
	"testing"
)

func TestRepeatMode(t *testing.T) {
	t.Run("Next Cycles", func(t *testing.T) {
		mode := RepeatOff
		want := []RepeatMode{RepeatContext, RepeatTrack, RepeatOff}
		for _, w := range want {
			mode = mode.Next()
			if mode != w {
				t.Fatalf("got %s, want %s", mode, w)
			}
		}
	})

	t.Run("Parse", func(t *testing.T) {
		if m, err := ParseRepeatMode("TRACK"); err != nil || m != RepeatTrack {
			t.Errorf("expected track, got %s err=%v", m, err)
		}
		if _, err := ParseRepeatMode("forever"); err == nil {
			t.Error("expected error for unknown mode")
		}
	})
}

func TestPlaybackStateDecode(t *testing.T) {
	body := `{
		"device": {"id": "dev-1", "is_active": true, "name": "Laptop", "type": "Computer", "volume_percent": 40},
		"repeat_state": "context",
		"shuffle_state": true,
		"is_playing": true,
		"progress_ms": 1234,
		"item": {"id": "t1", "name": "Song", "uri": "spotify:track:t1", "duration_ms": 200000,
			"artists": [{"id": "a1", "name": "First"}, {"id": "a2", "name": "Second"}],
			"album": {"id": "al", "name": "Album", "images": [{"url": "https://i"}]}}
	}`

	var state PlaybackState
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if state.Device.DeviceID() != "dev-1" || !state.Device.IsActive {
		t.Errorf("unexpected device %+v", state.Device)
	}
	if state.RepeatState != RepeatContext || !state.ShuffleState || !state.IsPlaying {
		t.Errorf("unexpected flags %+v", state)
	}
	if state.Item == nil || state.Item.String() != "Song - First, Second" {
		t.Errorf("unexpected item %+v", state.Item)
	}
	if state.ProgressMS == nil || *state.ProgressMS != 1234 {
		t.Errorf("unexpected progress %v", state.ProgressMS)
	}
}

func TestPlayRequestEncode(t *testing.T) {
	t.Run("Empty Resumes", func(t *testing.T) {
		req := PlayRequest{}
		if !req.Empty() {
			t.Error("zero request should be empty")
		}
		data, _ := json.Marshal(req)
		if string(data) != "{}" {
			t.Errorf("expected {}, got %s", data)
		}
	})

	t.Run("Context With Offset", func(t *testing.T) {
		req := PlayRequest{ContextURI: "spotify:playlist:p", Offset: &Offset{URI: "spotify:track:t"}}
		data, _ := json.Marshal(req)
		want := `{"context_uri":"spotify:playlist:p","offset":{"uri":"spotify:track:t"}}`
		if string(data) != want {
			t.Errorf("got %s, want %s", data, want)
		}
	})
}

func TestPlaylistItemValid(t *testing.T) {
	tc := []struct {
		name string
		item PlaylistItem
		want bool
	}{
		{name: "valid", item: PlaylistItem{Track: &Track{ID: "t", URI: "spotify:track:t"}}, want: true},
		{name: "nil track", item: PlaylistItem{}, want: false},
		{name: "empty id", item: PlaylistItem{Track: &Track{URI: "spotify:local:x"}}, want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageHasNext(t *testing.T) {
	next := "https://api.spotify.com/v1/me/playlists?offset=50"
	if !(&Page[int]{Next: &next}).HasNext() {
		t.Error("expected HasNext with next url")
	}
	if (&Page[int]{}).HasNext() {
		t.Error("expected no next page")
	}
}
