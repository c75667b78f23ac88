// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the config file and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles remote library authentication.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage remote library authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with the remote library using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check whether the stored token still works",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// syncCommand drives the staged remote-to-local sync pipeline.
func syncCommand(r *Runner) *cli.Command {
	syncFlags := []cli.Flag{
		configFlag(),
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Clear stored sync tokens first so everything re-syncs",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Apply changes without prompting",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output response envelopes as JSON",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-keyword",
			Usage: "Skip remote playlists whose name contains this keyword",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-playlist",
			Usage: "Skip this remote playlist ID",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-description",
			Usage: "Skip remote playlists whose description contains this phrase",
		},
	}

	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize the local catalog with the remote library",
		Commands: []*cli.Command{
			{
				Name:   "playlists",
				Usage:  "Sync the playlist roster",
				Flags:  syncFlags,
				Action: r.SyncPlaylists,
			},
			{
				Name:   "tracks",
				Usage:  "Sync the track universe from the reference playlist",
				Flags:  syncFlags,
				Action: r.SyncTracks,
			},
			{
				Name:    "associations",
				Aliases: []string{"assoc"},
				Usage:   "Sync playlist memberships",
				Flags:   syncFlags,
				Action:  r.SyncAssociations,
			},
			{
				Name:   "all",
				Usage:  "Run the full pipeline: playlists, tracks, associations",
				Flags:  syncFlags,
				Action: r.SyncAll,
			},
			{
				Name:   "clear",
				Usage:  "Drop all stored sync tokens",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SyncClear,
			},
		},
	}
}

// bindCommand links local audio files to catalog tracks.
func bindCommand(r *Runner) *cli.Command {
	bindFlags := []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Directory to scan (defaults to library.master_tracks_dir)",
		},
		&cli.FloatFlag{
			Name:  "threshold",
			Usage: "Confidence above which a match applies without review",
			Value: 0.75,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output results as JSON",
		},
	}

	return &cli.Command{
		Name:  "bind",
		Usage: "Match local audio files to catalog tracks",
		Commands: []*cli.Command{
			{
				Name:   "analyze",
				Usage:  "Scan and score unbound files without writing anything",
				Flags:  bindFlags,
				Action: r.BindAnalyze,
			},
			{
				Name:  "run",
				Usage: "Scan, review, and persist file bindings",
				Flags: append(bindFlags,
					&cli.BoolFlag{
						Name:    "interactive",
						Aliases: []string{"i"},
						Usage:   "Pick matches for low-confidence files in a TUI",
					},
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Apply automatic matches without prompting",
					},
				),
				Action: r.BindRun,
			},
			{
				Name:   "cleanup",
				Usage:  "Deactivate mappings whose files no longer exist",
				Flags:  []cli.Flag{configFlag()},
				Action: r.BindCleanup,
			},
			{
				Name:  "duplicates",
				Usage: "List tracks bound to more than one file",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output results as JSON",
					},
					&cli.StringSliceFlag{
						Name:  "keep",
						Usage: "Resolve a duplicate, formatted as track_uri=file_path",
					},
				},
				Action: r.BindDuplicates,
			},
		},
	}
}

// dupesCommand detects and removes duplicate catalog tracks.
func dupesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dupes",
		Usage: "Detect and remove duplicate catalog tracks",
		Commands: []*cli.Command{
			{
				Name:  "detect",
				Usage: "Report confirmed duplicate groups",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output results as JSON",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write a Markdown report to this path",
					},
				},
				Action: r.DupesDetect,
			},
			{
				Name:  "cleanup",
				Usage: "Merge memberships into the primary and remove duplicates",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report what would be removed without writing",
					},
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Apply removals without prompting",
					},
				},
				Action: r.DupesCleanup,
			},
		},
	}
}

// exportCommand writes playlist files for the local player.
func exportCommand(r *Runner) *cli.Command {
	dirFlag := &cli.StringFlag{
		Name:  "dir",
		Usage: "Output directory (defaults to library.playlists_dir)",
	}

	return &cli.Command{
		Name:  "export",
		Usage: "Generate playlist files from the catalog",
		Commands: []*cli.Command{
			{
				Name:  "playlist",
				Usage: "Regenerate one playlist file",
				Flags: []cli.Flag{
					configFlag(),
					dirFlag,
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID to regenerate",
						Required: true,
					},
				},
				Action: r.ExportPlaylist,
			},
			{
				Name:   "all",
				Usage:  "Regenerate every playlist file",
				Flags:  []cli.Flag{configFlag(), dirFlag},
				Action: r.ExportAll,
			},
			{
				Name:  "reorganize",
				Usage: "Move playlist files to match the stored folder structure",
				Flags: []cli.Flag{
					configFlag(),
					dirFlag,
					&cli.BoolFlag{
						Name:  "no-backup",
						Usage: "Skip the backup copy of the current tree",
					},
				},
				Action: r.ExportReorganize,
			},
			{
				Name:  "orphans",
				Usage: "Remove playlist files with no catalog counterpart",
				Flags: []cli.Flag{
					configFlag(),
					dirFlag,
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report orphans without deleting",
					},
				},
				Action: r.ExportOrphans,
			},
			{
				Name:  "csv",
				Usage: "Export the track catalog as CSV",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "tracks.csv",
					},
				},
				Action: r.ExportCSV,
			},
		},
	}
}

// historyCommand reports past sync runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent sync runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output runs as JSON",
			},
		},
		Action: r.History,
	}
}

// serveCommand runs the HTTP sync API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the sync API over HTTP",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Bind address (defaults to server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Bind port (defaults to server.port)",
			},
		},
		Action: r.Serve,
	}
}
