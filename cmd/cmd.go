// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes the config file and history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, history database and download folder",
		Action: r.Setup,
	}
}

// downloadCommand runs one batch download headlessly.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl", "get"},
		Usage:   "Download a playlist, album or track and stream its progress",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "input",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"o"},
				Usage:   "Destination folder (overrides config)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Preferred format (MP3, FLAC, OGG, M4A, OPUS, WAV)",
			},
			&cli.IntFlag{
				Name:  "bitrate",
				Usage: "Preferred bitrate in kbps (128, 192, 256, 320)",
			},
			&cli.BoolFlag{
				Name:  "serve",
				Usage: "Expose the session status over HTTP while downloading",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a session report when done (csv, markdown, text)",
			},
			&cli.StringFlag{
				Name:  "report-path",
				Usage: "Report file, base name or directory (default: session-<n>)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the session in the history database",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the final snapshot as JSON",
			},
		},
		Action: r.Download,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive downloader",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "serve",
				Usage: "Expose the session status over HTTP while the TUI runs",
			},
		},
		Action: r.TUI,
	}
}

// settingsCommand prints or edits the persisted settings.
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change settings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the current settings (password masked)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SettingsShow,
			},
			{
				Name:  "set",
				Usage: "Update one or more settings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Usage: "Soulseek username"},
					&cli.StringFlag{Name: "password", Usage: "Soulseek password"},
					&cli.StringFlag{Name: "path", Usage: "Destination folder"},
					&cli.StringFlag{Name: "format", Usage: "Preferred format"},
					&cli.IntFlag{Name: "bitrate", Usage: "Preferred bitrate in kbps"},
					&cli.IntFlag{Name: "concurrency", Usage: "Tracks downloaded in parallel"},
				},
				Action: r.SettingsSet,
			},
		},
	}
}

// historyCommand browses recorded sessions.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse past download sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded sessions, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of sessions to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "outcome",
						Usage: "Only show sessions with this outcome (completed, cancelled, failed)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one session and its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "export",
				Usage: "Export a session report",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format (csv, markdown, text)",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Report file, base name or directory (default: session-<n>)",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:  "delete",
				Usage: "Remove a session from history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}
