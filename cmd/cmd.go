// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/blue-creative/db-rb/internal/formatter"
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

func policyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "policy",
			Aliases: []string{"p"},
			Usage:   "Conflict resolution: accept, keep or manual",
			Value:   "manual",
		},
		&cli.StringSliceFlag{
			Name:  "resolve",
			Usage: "Per-item override as INDEX=accept|keep|manual (repeatable)",
		},
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in defaults",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the catalog database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// ingestCommand parses documents and merges them into the catalog.
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Parse library exports and playlists and merge them into the catalog",
		Commands: []*cli.Command{
			{
				Name:      "preview",
				Usage:     "Show how files would merge without changing the catalog",
				ArgsUsage: "FILE...",
				Flags:     jsonFlags(),
				Action:    r.IngestPreview,
			},
			{
				Name:      "apply",
				Usage:     "Merge files into the catalog",
				ArgsUsage: "FILE...",
				Flags:     append(policyFlags(), jsonFlags()...),
				Action:    r.IngestApply,
			},
		},
	}
}

// tracksCommand handles browsing and editing the catalog.
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tracks",
		Aliases: []string{"t"},
		Usage:   "Browse, edit and export catalog tracks",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List tracks, optionally filtered by free text",
				ArgsUsage: "[FILTER]",
				Flags:     jsonFlags(),
				Action:    r.TracksList,
			},
			{
				Name:      "show",
				Usage:     "Show every field of one track",
				ArgsUsage: "ID",
				Flags:     jsonFlags(),
				Action:    r.TracksShow,
			},
			{
				Name:      "edit",
				Usage:     "Set one field of a track",
				ArgsUsage: "ID FIELD VALUE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "Attribute the edit to this user (default: audit.user)",
					},
				},
				Action: r.TracksEdit,
			},
			{
				Name:      "audit",
				Usage:     "Show the edit history of a track or of the whole catalog",
				ArgsUsage: "[ID]",
				Flags:     jsonFlags(),
				Action:    r.TracksAudit,
			},
			{
				Name:      "revert",
				Usage:     "Restore the old value recorded by an audit entry",
				ArgsUsage: "AUDIT_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "Attribute the revert to this user (default: audit.user)",
					},
				},
				Action: r.TracksRevert,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a track, keeping its history",
				ArgsUsage: "ID",
				Action:    r.TracksDelete,
			},
			{
				Name:  "export",
				Usage: "Write the catalog in several formats",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Formats to write (repeatable): " + joinFormats(),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: dbrb_export_{epoch})",
					},
					&cli.StringFlag{
						Name:  "filter",
						Usage: "Only export tracks matching this text",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Base file name and document title",
						Value: "tracks",
					},
				},
				Action: r.TracksExport,
			},
		},
	}
}

// compareCommand classifies an external playlist against the catalog.
func compareCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Classify an external playlist as found, duplicate or missing",
		ArgsUsage: "[FILE]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Read this playlist id from the configured source instead of a file",
			},
			&cli.StringFlag{
				Name:  "source-url",
				Usage: "Playlist source base URL (default: source.base_url)",
			},
			&cli.StringFlag{
				Name:  "only",
				Usage: "Only show entries with this status: found, duplicate or missing",
			},
		}, jsonFlags()...),
		Action: r.Compare,
	}
}

// scanCommand reads tags from audio files.
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Read tags from audio files below a directory",
		ArgsUsage: "DIR",
		Flags: append(append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "apply",
				Usage: "Merge the scanned tracks into the catalog",
			},
		}, policyFlags()...), jsonFlags()...),
		Action: r.Scan,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the catalog over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

func joinFormats() string {
	return strings.Join(formatter.Formats, ", ")
}
