package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/ui"
)

// TUI launches the interactive player.
//
// The playback loop runs for the lifetime of the program and the view
// observes it and the session through [ui.Watch].
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	if err := r.authenticate(ctx); err != nil {
		return err
	}
	if err := r.openCache(); err != nil {
		r.logger.Warn("playlist cache unavailable", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, r.loop, r.loader, r.manager.State())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	stop := ui.Watch(p, r.loop, r.manager)
	defer stop()

	go r.loop.Run(ctx)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
