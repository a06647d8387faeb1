package playback

import (
	"time"

	"github.com/desertthunder/spotsync/internal/models"
)

// Snapshot is the locally known playback state.
//
// Snapshots are values: a poll builds a new one and commands edit a copy, so a
// Snapshot handed to an observer is never mutated afterwards.
type Snapshot struct {
	Device     *models.Device
	Devices    []models.Device
	IsPlaying  bool
	ProgressMS int
	DurationMS int
	Shuffle    bool
	Repeat     models.RepeatMode
	Item       *models.Track
	Context    *models.PlaybackContext
	// Active is false when no device is playing anything.
	Active    bool
	UpdatedAt time.Time
}

// DeviceID returns the id of the device playback is on, if any.
func (s Snapshot) DeviceID() string {
	if s.Device == nil {
		return ""
	}
	return s.Device.DeviceID()
}

// FindDevice looks up a device by id or, failing that, by case-sensitive name.
func (s Snapshot) FindDevice(idOrName string) (models.Device, bool) {
	for _, d := range s.Devices {
		if d.DeviceID() == idOrName {
			return d, true
		}
	}
	for _, d := range s.Devices {
		if d.Name == idOrName {
			return d, true
		}
	}
	return models.Device{}, false
}

// newSnapshot builds a snapshot from a poll. A nil state means nothing is
// playing.
func newSnapshot(state *models.PlaybackState, devices []models.Device, at time.Time) Snapshot {
	s := Snapshot{Devices: devices, Repeat: models.RepeatOff, UpdatedAt: at}
	if state == nil {
		return s
	}

	device := state.Device
	s.Device = &device
	s.Active = true
	s.IsPlaying = state.IsPlaying
	s.Shuffle = state.ShuffleState
	s.Item = state.Item
	s.Context = state.Context

	if state.RepeatState != "" {
		s.Repeat = state.RepeatState
	}
	if state.ProgressMS != nil {
		s.ProgressMS = *state.ProgressMS
	}
	if state.Item != nil {
		s.DurationMS = state.Item.DurationMS
	}
	return s
}
