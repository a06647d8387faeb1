package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/formatter"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/playback"
	"github.com/desertthunder/spotsync/internal/shared"
)

// playerAction authenticates, polls once so commands start from the remote
// state, runs fn and prints the resulting snapshot.
func (r *Runner) playerAction(fn func(ctx context.Context, loop *playback.Loop, cmd *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := r.authenticate(ctx); err != nil {
			return err
		}
		if err := r.loop.Poll(ctx); err != nil {
			return err
		}
		if err := fn(ctx, r.loop, cmd); err != nil {
			return err
		}
		r.writeSnapshot(r.loop.Snapshot())
		return nil
	}
}

// PlayerStatus prints the current playback state.
func (r *Runner) PlayerStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}
	if err := r.loop.Poll(ctx); err != nil {
		return err
	}

	snap := r.loop.Snapshot()
	if cmd.Bool("json") {
		return r.writeJSON(snap, cmd.Bool("pretty"))
	}
	r.writeSnapshot(snap)
	return nil
}

// PlayerDevices lists the user's devices.
func (r *Runner) PlayerDevices(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}
	if err := r.loop.Poll(ctx); err != nil {
		return err
	}

	devices := r.loop.Snapshot().Devices
	if cmd.Bool("json") {
		return r.writeJSON(devices, cmd.Bool("pretty"))
	}

	if len(devices) == 0 {
		return r.writePlain("No devices found. Open Spotify on a device first.\n")
	}
	for _, d := range devices {
		marker := " "
		if d.IsActive {
			marker = "●"
		}
		r.writePlain("%s %s (%s)\n", marker, d.Name, d.Type)
		r.writePlain("   ID: %s\n", d.DeviceID())
	}
	return nil
}

func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	return r.playerAction(func(ctx context.Context, loop *playback.Loop, cmd *cli.Command) error {
		if uri := cmd.String("uri"); uri != "" {
			return loop.PlayTrack(ctx, models.Track{URI: uri}, cmd.String("context"))
		}
		return loop.Play(ctx)
	})(ctx, cmd)
}

func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	return r.playerAction(func(ctx context.Context, loop *playback.Loop, _ *cli.Command) error {
		return loop.Pause(ctx)
	})(ctx, cmd)
}

func (r *Runner) PlayerToggle(ctx context.Context, cmd *cli.Command) error {
	return r.playerAction(func(ctx context.Context, loop *playback.Loop, _ *cli.Command) error {
		return loop.TogglePlayPause(ctx)
	})(ctx, cmd)
}

func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	return r.playerAction(func(ctx context.Context, loop *playback.Loop, _ *cli.Command) error {
		return loop.Next(ctx)
	})(ctx, cmd)
}

func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.playerAction(func(ctx context.Context, loop *playback.Loop, _ *cli.Command) error {
		return loop.Previous(ctx)
	})(ctx, cmd)
}

// PlayerShuffle sets shuffle from "on"/"off", or toggles it.
func (r *Runner) PlayerShuffle(ctx context.Context, cmd *cli.Command) error {
	return r.playerAction(func(ctx context.Context, loop *playback.Loop, cmd *cli.Command) error {
		switch state := strings.ToLower(cmd.StringArg("state")); state {
		case "":
			return loop.ToggleShuffle(ctx)
		case "on", "true":
			return loop.SetShuffle(ctx, true)
		case "off", "false":
			return loop.SetShuffle(ctx, false)
		default:
			return fmt.Errorf("%w: shuffle state %q (want on or off)", shared.ErrInvalidArgument, state)
		}
	})(ctx, cmd)
}

// PlayerRepeat sets the repeat mode, or cycles it.
func (r *Runner) PlayerRepeat(ctx context.Context, cmd *cli.Command) error {
	return r.playerAction(func(ctx context.Context, loop *playback.Loop, cmd *cli.Command) error {
		name := cmd.StringArg("mode")
		if name == "" {
			return loop.CycleRepeat(ctx)
		}
		mode, err := models.ParseRepeatMode(name)
		if err != nil {
			return err
		}
		return loop.SetRepeat(ctx, mode)
	})(ctx, cmd)
}

// PlayerTransfer moves playback to a device named by id or name.
func (r *Runner) PlayerTransfer(ctx context.Context, cmd *cli.Command) error {
	return r.playerAction(func(ctx context.Context, loop *playback.Loop, cmd *cli.Command) error {
		target := cmd.StringArg("device")
		if target == "" {
			return fmt.Errorf("%w: device id or name", shared.ErrMissingArgument)
		}

		device, ok := loop.Snapshot().FindDevice(target)
		if !ok || device.DeviceID() == "" {
			return fmt.Errorf("%w: %s", shared.ErrDeviceNotFound, target)
		}
		return loop.TransferTo(ctx, device.DeviceID())
	})(ctx, cmd)
}

// PlayerWatch runs the playback loop and prints each change of track or
// play state until interrupted.
func (r *Runner) PlayerWatch(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	var last string
	unsubscribe := r.loop.OnSnapshotChange(func(s playback.Snapshot) {
		line := snapshotLine(s)
		if line != last {
			last = line
			r.writePlain("%s\n", line)
		}
	})
	defer unsubscribe()

	r.logger.Info("watching playback, press Ctrl+C to stop")
	r.loop.Run(ctx)
	return nil
}

func (r *Runner) writeSnapshot(s playback.Snapshot) {
	r.writePlain("%s\n", snapshotLine(s))
	if !s.Active {
		return
	}

	shuffle := "off"
	if s.Shuffle {
		shuffle = "on"
	}
	r.writePlain("   Progress: %s / %s\n", formatter.FormatDuration(s.ProgressMS), formatter.FormatDuration(s.DurationMS))
	r.writePlain("   Shuffle: %s  Repeat: %s\n", shuffle, s.Repeat)
	if s.Device != nil {
		r.writePlain("   Device: %s (%s)\n", s.Device.Name, s.Device.Type)
	}
}

func snapshotLine(s playback.Snapshot) string {
	if !s.Active || s.Item == nil {
		return "■ Nothing playing"
	}
	icon := "⏸"
	if s.IsPlaying {
		icon = "▶"
	}
	return fmt.Sprintf("%s %s", icon, s.Item)
}
