package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/credentials"
	"github.com/desertthunder/spotsync/internal/playback"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/session"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The session, client and playback loop are built on first use, after the
// root command has loaded the configuration.
type Runner struct {
	config      *shared.Config
	configPath  string
	fixedConfig bool
	logger      *log.Logger
	output      io.Writer
	input       io.Reader
	httpClient  *http.Client

	store   credentials.Store
	manager *session.Manager
	client  *services.SpotifyClient
	loop    *playback.Loop
	loader  *tasks.PlaylistLoader
	db      *sql.DB
	repo    *repositories.PlaylistRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Config, when set, is used as is and the --config flag is ignored.
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	HTTPClient *http.Client
	Store      credentials.Store
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		fixedConfig: opts.Config != nil,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       opts.Input,
		httpClient:  opts.HTTPClient,
		store:       opts.Store,
	}

	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	if r.input == nil {
		r.input = os.Stdin
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playerCommand, playlistsCommand, cacheCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration named by --config, when present, and applies
// the log level.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if !r.fixedConfig && r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	if err := shared.ParseLogLevel(r.logger, level); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// after releases whatever the command opened.
func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// SetLogger replaces the logger. Components already built keep the old one.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// services builds the credential store, session manager, Web API client,
// playback loop and playlist loader.
func (r *Runner) services() error {
	if r.manager != nil {
		return nil
	}

	cfg := r.config
	if err := cfg.Validate(); err != nil {
		return err
	}

	if r.store == nil {
		store, err := credentials.New(cfg.Credentials, r.logger)
		if err != nil {
			return err
		}
		r.store = store
	}

	manager, err := session.NewManager(session.Options{
		OAuth:          session.OAuthConfig(cfg.Spotify),
		Store:          r.store,
		StoreKey:       cfg.Credentials.Key,
		HTTPClient:     r.httpClient,
		Logger:         r.logger,
		RefreshMargin:  cfg.Session.RefreshMargin,
		RefreshTimeout: cfg.Session.RefreshTimeout,
	})
	if err != nil {
		return err
	}

	httpClient := r.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	r.manager = manager
	r.client = services.NewSpotifyClient(services.ClientOptions{
		BaseURL:           cfg.Spotify.APIURL,
		HTTPClient:        httpClient,
		Tokens:            manager,
		Logger:            r.logger,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		BreakerFailures:   cfg.API.BreakerFailures,
		BreakerTimeout:    cfg.API.BreakerTimeout,
	})
	r.loop = playback.NewLoop(playback.Options{
		Client:          r.client,
		Logger:          r.logger,
		PollInterval:    cfg.Playback.PollInterval,
		ReconcileDelay:  cfg.Playback.ReconcileDelay,
		RollbackOnError: cfg.Playback.RollbackOnError,
	})
	r.loader = tasks.NewPlaylistLoader(r.client, nil, r.logger)
	return nil
}

// authenticate builds the services and restores the stored session.
func (r *Runner) authenticate(ctx context.Context) error {
	if err := r.services(); err != nil {
		return err
	}
	if r.manager.State() == session.Authenticated {
		return nil
	}

	if err := r.manager.Start(ctx); err != nil {
		if errors.Is(err, shared.ErrTokenRefreshFailed) {
			return fmt.Errorf("%w: run `spotsync auth login` to sign in again", err)
		}
		return err
	}
	if r.manager.State() != session.Authenticated {
		return fmt.Errorf("%w: run `spotsync auth login` first", shared.ErrNotAuthenticated)
	}
	return nil
}

// openCache opens the playlist cache and points the loader at it.
func (r *Runner) openCache() error {
	if r.repo != nil {
		return nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	r.db = db
	r.repo = repositories.NewPlaylistRepository(db)
	if r.client != nil {
		r.loader = tasks.NewPlaylistLoader(r.client, r.repo, r.logger)
	}
	return nil
}

// Close closes the playlist cache, if open.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.repo = nil, nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
