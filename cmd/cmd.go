// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
		Sources: cli.EnvVars("NEUROTUNE_CONFIG"),
	}
}

// App builds the root command.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:    "neurotune",
		Usage:   "Pick Spotify playlists from your brain state",
		Version: "0.1.0",
		Writer:  r.output,
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, yaml, csv or markdown",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error); overrides the config file",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config file with default values",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles the Spotify session.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify in the browser (OAuth2 + PKCE)",
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored tokens",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Check the stored session against the Spotify API",
				Action: r.AuthStatus,
			},
		},
	}
}

// playbackCommand controls the active Spotify device.
func playbackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playback",
		Aliases: []string{"play", "p"},
		Usage:   "Control Spotify playback",
		Commands: []*cli.Command{
			{
				Name:   "now",
				Usage:  "Show the current track",
				Action: r.PlaybackNow,
			},
			{
				Name:   "toggle",
				Usage:  "Pause or resume",
				Action: r.PlaybackToggle,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Action: r.PlaybackNext,
			},
			{
				Name:    "prev",
				Aliases: []string{"previous"},
				Usage:   "Skip to the previous track",
				Action:  r.PlaybackPrevious,
			},
			{
				Name:   "queue",
				Usage:  "Show the upcoming tracks",
				Action: r.PlaybackQueue,
			},
		},
	}
}

// moodCommand classifies EEG samples and plays mood playlists.
func moodCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mood",
		Usage: "Mood classification and playlists",
		Commands: []*cli.Command{
			{
				Name:  "classify",
				Usage: "Read one sample from the EEG feed and score it",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "simulate",
						Usage: "Score the built-in fallback sample instead of reading the feed",
					},
				},
				Action: r.MoodClassify,
			},
			{
				Name:      "play",
				Usage:     "Search playlists for a mood and play the first",
				ArgsUsage: "<focus|energy|chill>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mood"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "list",
						Usage: "Only list the search results",
					},
				},
				Action: r.MoodPlay,
			},
		},
	}
}

func loopFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "auto",
			Usage: "Start in auto mode (EEG drives the mood); defaults to eeg.auto_start",
		},
		&cli.BoolFlag{
			Name:  "gestures",
			Usage: "Enable motion gestures; defaults to gestures.enabled",
		},
		&cli.StringFlag{
			Name:  "mood",
			Usage: "Initial mood",
			Value: "focus",
		},
	}
}

// runCommand starts the control loop with the local API.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"serve"},
		Usage:   "Run the control loop and serve the local HTTP/WebSocket API",
		Flags: append(loopFlags(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address; defaults to api.host:api.port",
			},
		),
		Action: r.Run,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the terminal dashboard",
		Flags: append(loopFlags(),
			&cli.BoolFlag{
				Name:  "serve",
				Usage: "Also serve the local API while the dashboard runs",
			},
		),
		Action: r.TUI,
	}
}
