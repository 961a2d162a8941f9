// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "snapnote",
		Usage: "Screenshot library with AI enrichment and semantic search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file (default: <data dir>/config.toml)",
				EnvVars: []string{"SNAPNOTE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "owner",
				Aliases: []string{"o"},
				Usage:   "Owner whose screenshots are read and written",
				Value:   "default",
				EnvVars: []string{"SNAPNOTE_OWNER"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Store screenshots and enrich them",
				ArgsUsage: "<file>...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "app",
						Usage: "Name of the application the screenshot was taken in",
					},
					&cli.StringSliceFlag{
						Name:  "tags",
						Usage: "Client tags recorded in the note",
					},
					&cli.StringFlag{
						Name:  "captured-at",
						Usage: "Capture time as RFC 3339 or Unix seconds (default: file modification time)",
					},
					&cli.BoolFlag{
						Name:  "deferred",
						Usage: "Queue enrichment on the worker pool instead of waiting for it",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List screenshots, newest first",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of screenshots to skip",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of screenshots to show",
						Value: 20,
					},
				},
			},
			{
				Name:      "show",
				Usage:     "Show one screenshot",
				ArgsUsage: "<id>",
				Action:    showCommand,
			},
			{
				Name:      "update",
				Usage:     "Edit the note or tags of a screenshot",
				ArgsUsage: "<id>",
				Action:    updateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "note",
						Usage: "Replacement note",
					},
					&cli.StringSliceFlag{
						Name:  "tags",
						Usage: "Replacement tags",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a screenshot, its images and its vector",
				ArgsUsage: "<id>",
				Action:    deleteCommand,
			},
			{
				Name:      "search",
				Usage:     "Semantic search over screenshots",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Log each search stage",
					},
				},
			},
			{
				Name:   "rescan",
				Usage:  "Enrich every screenshot that has no enrichment yet",
				Action: rescanCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N screenshots",
						Value: 10,
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed all enriched screenshots with the configured embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of screenshots to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N screenshots",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration with secrets masked",
				Action: configCommand,
			},
		},
	}
}

// setup loads .env and configures logging before any command runs.
func setup(c *cli.Context) error {
	if err := loadEnv(".env"); err != nil {
		return err
	}
	return setupLogger(c)
}

// loadEnv reads KEY=value pairs from path into the environment.
// Variables already set win; a missing file is not an error.
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
