package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/spotsync/internal/playback"
	"github.com/desertthunder/spotsync/internal/session"
)

// SnapshotSource publishes playback snapshots.
type SnapshotSource interface {
	OnSnapshotChange(fn func(playback.Snapshot)) (unsubscribe func())
}

// SessionSource publishes session events.
type SessionSource interface {
	OnSessionChange(fn func(session.Event)) (unsubscribe func())
}

// Watch forwards snapshots and session events to p until stop is called.
// Either source may be nil.
func Watch(p *tea.Program, snapshots SnapshotSource, sessions SessionSource) (stop func()) {
	var stops []func()
	if snapshots != nil {
		stops = append(stops, snapshots.OnSnapshotChange(func(s playback.Snapshot) {
			p.Send(SnapshotMsg(s))
		}))
	}
	if sessions != nil {
		stops = append(stops, sessions.OnSessionChange(func(e session.Event) {
			p.Send(SessionMsg(e))
		}))
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}
