// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func retriesFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "retries",
		Aliases: []string{"r"},
		Usage:   "Maximum passes before giving up (default: pipeline.retry_limit)",
	}
}

// setupCommand creates the config file, the database and the library root.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the configuration file, database and library directories",
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:  "cookies",
				Usage: "Store Flickr session cookies from a browser request (Copy as cURL)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a file containing the cURL command",
					},
				},
				Action: r.SetupCookies,
			},
		},
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Read and update the configuration file",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Set a single key, e.g. `pmx config set source.user_id 12345678@N00`",
				ArgsUsage: "<section.key> <value>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.ConfigSet,
			},
		},
	}
}

// authCommand handles authentication with both services
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize access to the source and destination libraries",
		Commands: []*cli.Command{
			{
				Name:  "google",
				Usage: "Authorize Google Photos through a local OAuth2 callback",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultAuthTimeout,
					},
				},
				Action: r.AuthGoogle,
			},
			{
				Name:   "flickr",
				Usage:  "Authorize Flickr with the out-of-band OAuth 1.0a flow",
				Action: r.AuthFlickr,
			},
		},
	}
}

func seedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "seed",
		Usage:  "List every photo and album of the source library into the local store",
		Flags:  []cli.Flag{retriesFlag()},
		Action: r.Seed,
	}
}

func populateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "populate",
		Usage:  "Fetch title, description, date and best source URL for every seeded photo",
		Flags:  []cli.Flag{retriesFlag()},
		Action: r.Populate,
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download original files, adding capture dates to images that lack one",
		Flags: []cli.Flag{
			retriesFlag(),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Download again photos that already have a local file",
			},
			&cli.BoolFlag{
				Name:  "videos-only",
				Usage: "Only download videos",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Download root (default: store.media_root)",
			},
		},
		Action: r.Download,
	}
}

func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "albums",
		Usage:  "Create a destination album for every source album",
		Flags:  []cli.Flag{retriesFlag()},
		Action: r.Albums,
	}
}

func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload downloaded files and add them to their destination albums",
		Flags: []cli.Flag{
			retriesFlag(),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Upload again photos that are already linked",
			},
			&cli.BoolFlag{
				Name:  "videos-only",
				Usage: "Only upload videos",
			},
			&cli.BoolFlag{
				Name:  "missing-exif-only",
				Usage: "Only upload photos whose capture date was added locally",
			},
		},
		Action: r.Upload,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show how many photos reached each pipeline state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the CSV export to this file instead of stdout",
			},
		},
		Action: r.Status,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded stage passes, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "stage",
				Usage: "Only show passes of this stage",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Only show passes of this run id",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of passes to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
