package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotsync/internal/events"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const (
	DefaultPollInterval   = 3 * time.Second
	DefaultReconcileDelay = 500 * time.Millisecond
)

// Client is the slice of the Web API client the loop needs.
//
// An empty deviceID targets the currently active device.
type Client interface {
	PlaybackState(ctx context.Context) (*models.PlaybackState, error)
	Devices(ctx context.Context) ([]models.Device, error)
	Play(ctx context.Context, deviceID string, req models.PlayRequest) error
	Pause(ctx context.Context, deviceID string) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
	SetShuffle(ctx context.Context, deviceID string, on bool) error
	SetRepeat(ctx context.Context, deviceID string, mode models.RepeatMode) error
}

// Options configures a [Loop]. Client is required.
type Options struct {
	Client          Client
	Logger          *log.Logger
	PollInterval    time.Duration
	ReconcileDelay  time.Duration
	RollbackOnError bool
	Now             func() time.Time
}

// Loop owns the playback snapshot.
type Loop struct {
	client   Client
	logger   *log.Logger
	interval time.Duration
	delay    time.Duration
	rollback bool
	now      func() time.Time

	bus     *events.Bus[Snapshot]
	pubMu   sync.Mutex
	wake    chan struct{}
	polling atomic.Bool

	mu        sync.Mutex
	snapshot  Snapshot
	edits     uint64
	version   uint64
	reconcile *time.Timer
}

func NewLoop(opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReconcileDelay <= 0 {
		opts.ReconcileDelay = DefaultReconcileDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Loop{
		client:   opts.Client,
		logger:   shared.WithLogger(opts.Logger, "component", "playback"),
		interval: opts.PollInterval,
		delay:    opts.ReconcileDelay,
		rollback: opts.RollbackOnError,
		now:      opts.Now,
		bus:      events.NewBus[Snapshot](),
		wake:     make(chan struct{}, 1),
		snapshot: Snapshot{Repeat: models.RepeatOff},
	}
}

// OnSnapshotChange registers fn to receive every new snapshot.
//
// fn runs on the goroutine that changed the snapshot and must not issue
// commands on the Loop synchronously.
func (l *Loop) OnSnapshotChange(fn func(Snapshot)) (unsubscribe func()) {
	return l.bus.Subscribe(fn)
}

// Snapshot returns the current snapshot.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot
}

// Run polls immediately, then on every interval and reconcile request, until
// ctx is done. Poll failures are logged and retried on the next tick.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.stopReconcile()

	l.logger.Debug("playback loop started", "interval", l.interval)
	l.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("playback loop stopped")
			return
		case <-ticker.C:
			l.tick(ctx)
		case <-l.wake:
			l.tick(ctx)
		}
	}
}

// RequestPoll asks a running [Loop.Run] to poll as soon as it is idle.
// Requests made while one is already queued are coalesced.
func (l *Loop) RequestPoll() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) tick(ctx context.Context) {
	err := l.Poll(ctx)
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, shared.ErrPollInProgress), errors.Is(err, shared.ErrStalePoll):
		l.logger.Debug("poll skipped", "reason", err)
	default:
		l.logger.Warn("poll failed", "error", err)
	}
}

// Poll fetches the playback state and device list and replaces the snapshot.
func (l *Loop) Poll(ctx context.Context) error {
	if !l.polling.CompareAndSwap(false, true) {
		return shared.ErrPollInProgress
	}
	defer l.polling.Store(false)

	l.mu.Lock()
	edits := l.edits
	l.mu.Unlock()

	state, err := l.client.PlaybackState(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch playback state: %w", err)
	}
	devices, err := l.client.Devices(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch devices: %w", err)
	}

	next := newSnapshot(state, devices, l.now())

	l.mu.Lock()
	if l.edits != edits {
		l.mu.Unlock()
		return shared.ErrStalePoll
	}
	l.snapshot = next
	l.version++
	l.mu.Unlock()

	l.publish()
	return nil
}

func (l *Loop) Play(ctx context.Context) error {
	return l.apply(ctx, "play",
		func(s *Snapshot) { s.IsPlaying = true },
		func(ctx context.Context) error { return l.client.Play(ctx, "", models.PlayRequest{}) },
	)
}

func (l *Loop) Pause(ctx context.Context) error {
	return l.apply(ctx, "pause",
		func(s *Snapshot) { s.IsPlaying = false },
		func(ctx context.Context) error { return l.client.Pause(ctx, "") },
	)
}

// TogglePlayPause pauses when the snapshot says playing and plays otherwise.
func (l *Loop) TogglePlayPause(ctx context.Context) error {
	if l.Snapshot().IsPlaying {
		return l.Pause(ctx)
	}
	return l.Play(ctx)
}

func (l *Loop) Next(ctx context.Context) error {
	return l.apply(ctx, "next",
		func(s *Snapshot) { s.ProgressMS = 0 },
		func(ctx context.Context) error { return l.client.Next(ctx, "") },
	)
}

func (l *Loop) Previous(ctx context.Context) error {
	return l.apply(ctx, "previous",
		func(s *Snapshot) { s.ProgressMS = 0 },
		func(ctx context.Context) error { return l.client.Previous(ctx, "") },
	)
}

func (l *Loop) ToggleShuffle(ctx context.Context) error {
	return l.shuffle(ctx, func(cur bool) bool { return !cur })
}

func (l *Loop) SetShuffle(ctx context.Context, on bool) error {
	return l.shuffle(ctx, func(bool) bool { return on })
}

func (l *Loop) shuffle(ctx context.Context, next func(bool) bool) error {
	var on bool
	return l.apply(ctx, "shuffle",
		func(s *Snapshot) {
			s.Shuffle = next(s.Shuffle)
			on = s.Shuffle
		},
		func(ctx context.Context) error { return l.client.SetShuffle(ctx, "", on) },
	)
}

// CycleRepeat advances repeat off -> context -> track -> off.
func (l *Loop) CycleRepeat(ctx context.Context) error {
	return l.repeat(ctx, models.RepeatMode.Next)
}

func (l *Loop) SetRepeat(ctx context.Context, mode models.RepeatMode) error {
	return l.repeat(ctx, func(models.RepeatMode) models.RepeatMode { return mode })
}

func (l *Loop) repeat(ctx context.Context, next func(models.RepeatMode) models.RepeatMode) error {
	var mode models.RepeatMode
	return l.apply(ctx, "repeat",
		func(s *Snapshot) {
			s.Repeat = next(s.Repeat)
			mode = s.Repeat
		},
		func(ctx context.Context) error { return l.client.SetRepeat(ctx, "", mode) },
	)
}

// PlayTrack starts track. With a contextURI (a playlist or album) playback
// continues through that context from the track.
func (l *Loop) PlayTrack(ctx context.Context, track models.Track, contextURI string) error {
	if track.URI == "" {
		return fmt.Errorf("%w: track uri", shared.ErrMissingArgument)
	}

	req := models.PlayRequest{URIs: []string{track.URI}}
	if contextURI != "" {
		req = models.PlayRequest{ContextURI: contextURI, Offset: &models.Offset{URI: track.URI}}
	}

	return l.apply(ctx, "play_track",
		func(s *Snapshot) {
			s.Item = &track
			s.DurationMS = track.DurationMS
			s.ProgressMS = 0
			s.IsPlaying = true
		},
		func(ctx context.Context) error { return l.client.Play(ctx, "", req) },
	)
}

// TransferTo moves playback to deviceID by issuing a play command scoped to
// that device.
func (l *Loop) TransferTo(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id", shared.ErrMissingArgument)
	}

	return l.apply(ctx, "transfer",
		func(s *Snapshot) {
			devices := make([]models.Device, len(s.Devices))
			for i, d := range s.Devices {
				d.IsActive = d.DeviceID() == deviceID
				if d.IsActive {
					active := d
					s.Device = &active
				}
				devices[i] = d
			}
			s.Devices = devices
			s.Active = true
			s.IsPlaying = true
		},
		func(ctx context.Context) error { return l.client.Play(ctx, deviceID, models.PlayRequest{}) },
	)
}

// apply edits the snapshot optimistically, publishes it, then runs the remote
// call and schedules a reconcile poll.
func (l *Loop) apply(ctx context.Context, name string, edit func(*Snapshot), call func(context.Context) error) error {
	l.mu.Lock()
	before := l.snapshot
	edit(&l.snapshot)
	l.snapshot.UpdatedAt = l.now()
	l.edits++
	l.version++
	version := l.version
	l.mu.Unlock()

	l.publish()

	err := call(ctx)
	l.scheduleReconcile()
	if err == nil {
		l.logger.Debug("command sent", "command", name)
		return nil
	}

	l.logger.Warn("command failed", "command", name, "error", err)
	if l.rollback && l.restore(version, before) {
		l.logger.Debug("optimistic edit rolled back", "command", name)
	}
	return err
}

// restore puts before back unless the snapshot changed after the edit at
// version.
func (l *Loop) restore(version uint64, before Snapshot) bool {
	l.mu.Lock()
	if l.version != version {
		l.mu.Unlock()
		return false
	}
	before.UpdatedAt = l.now()
	l.snapshot = before
	l.version++
	l.mu.Unlock()

	l.publish()
	return true
}

// publish delivers the latest snapshot. Serializing on pubMu keeps observers
// from seeing snapshots out of order.
func (l *Loop) publish() {
	l.pubMu.Lock()
	defer l.pubMu.Unlock()
	l.bus.Publish(l.Snapshot())
}

func (l *Loop) scheduleReconcile() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reconcile != nil {
		l.reconcile.Stop()
	}
	l.reconcile = time.AfterFunc(l.delay, l.RequestPoll)
}

func (l *Loop) stopReconcile() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reconcile != nil {
		l.reconcile.Stop()
		l.reconcile = nil
	}
}
