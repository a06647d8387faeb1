// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// newApp builds the root command.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotsync",
		Usage:   "Control Spotify playback and browse playlists from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("SPOTSYNC_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before:   r.before,
		After:    r.after,
		Commands: r.register(),
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the playlist cache and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent cache migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles the Spotify session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify (OAuth2 PKCE)",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser redirect",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the session state",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Force an access token refresh",
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Delete the stored refresh token",
				Action: r.AuthLogout,
			},
		},
	}
}

// playerCommand handles playback control
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"p"},
		Usage:   "Control playback",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show what is playing",
				Flags:  jsonFlags(),
				Action: r.PlayerStatus,
			},
			{
				Name:   "devices",
				Usage:  "List available devices",
				Flags:  jsonFlags(),
				Action: r.PlayerDevices,
			},
			{
				Name:  "play",
				Usage: "Resume playback, or start a track",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "uri",
						Usage: "Track URI to start",
					},
					&cli.StringFlag{
						Name:  "context",
						Usage: "Playlist or album URI to play the track within",
					},
				},
				Action: r.PlayerPlay,
			},
			{
				Name:   "pause",
				Usage:  "Pause playback",
				Action: r.PlayerPause,
			},
			{
				Name:   "toggle",
				Usage:  "Toggle between play and pause",
				Action: r.PlayerToggle,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Action: r.PlayerNext,
			},
			{
				Name:    "previous",
				Aliases: []string{"prev"},
				Usage:   "Skip to the previous track",
				Action:  r.PlayerPrevious,
			},
			{
				Name:  "shuffle",
				Usage: "Set shuffle (on|off); toggles without an argument",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "state"},
				},
				Action: r.PlayerShuffle,
			},
			{
				Name:  "repeat",
				Usage: "Set repeat (off|context|track); cycles without an argument",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mode"},
				},
				Action: r.PlayerRepeat,
			},
			{
				Name:  "transfer",
				Usage: "Move playback to a device, by id or name",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "device"},
				},
				Action: r.PlayerTransfer,
			},
			{
				Name:   "watch",
				Usage:  "Print playback changes until interrupted",
				Action: r.PlayerWatch,
			},
		},
	}
}

// playlistsCommand handles playlist reads and edits
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Browse and edit playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your playlists",
				Flags: append(jsonFlags(), &cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of playlists to print (0 for all)",
				}),
				Action: r.PlaylistsList,
			},
			{
				Name:  "tracks",
				Usage: "List a playlist's tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  jsonFlags(),
				Action: r.PlaylistsTracks,
			},
			{
				Name:  "export",
				Usage: "Export a playlist's tracks to a file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (csv, md, txt, json)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
					&cli.BoolFlag{
						Name:  "cached",
						Usage: "Export from the local cache instead of Spotify",
					},
				},
				Action: r.PlaylistsExport,
			},
			{
				Name:      "add",
				Usage:     "Append tracks to a playlist",
				ArgsUsage: "<playlist-id> <track-uri>...",
				Action:    r.PlaylistsAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove every occurrence of tracks from a playlist",
				ArgsUsage: "<playlist-id> <track-uri>...",
				Action:    r.PlaylistsRemove,
			},
			{
				Name:  "move",
				Usage: "Move one item within a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "from",
						Usage:    "Position of the item to move",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "before",
						Usage:    "Position the item is inserted before",
						Required: true,
					},
				},
				Action: r.PlaylistsMove,
			},
		},
	}
}

// cacheCommand handles the local playlist cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Cache playlists and tracks locally",
		Commands: []*cli.Command{
			{
				Name:      "sync",
				Usage:     "Fetch playlists into the cache (all of them without ids)",
				ArgsUsage: "[playlist-id]...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of playlists fetched concurrently",
						Value: 4,
					},
				},
				Action: r.CacheSync,
			},
			{
				Name:   "list",
				Usage:  "List cached playlists",
				Flags:  jsonFlags(),
				Action: r.CacheList,
			},
			{
				Name:  "find",
				Usage: "Find cached playlists containing a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "uri"},
				},
				Flags:  jsonFlags(),
				Action: r.CacheFind,
			},
			{
				Name:  "drop",
				Usage: "Remove a playlist from the cache",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.CacheDrop,
			},
		},
	}
}

// apiCommand handles direct Web API calls
func apiCommand(r *Runner) *cli.Command {
	method := func(name, usage string, body bool) *cli.Command {
		c := &cli.Command{
			Name:  name,
			Usage: usage,
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "endpoint"},
			},
			Action: r.APICall,
		}
		if body {
			c.Flags = []cli.Flag{
				&cli.StringFlag{
					Name:    "data",
					Aliases: []string{"d"},
					Usage:   "JSON body to send",
				},
			}
		}
		return c
	}

	return &cli.Command{
		Name:  "api",
		Usage: "Direct authenticated Web API calls, printing the raw response",
		Commands: []*cli.Command{
			method("get", "GET an endpoint, e.g. /me", false),
			method("post", "POST a JSON body", true),
			method("put", "PUT a JSON body", true),
			method("delete", "DELETE, with an optional JSON body", true),
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive player",
		Action:  r.TUI,
	}
}
