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
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/snapnote"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/ingestion"
	"github.com/poiesic/snapnote/reindex"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the file named by --config, or the default config file
// in the data directory when the flag is unset.
func loadConfig(c *cli.Context) (*snapnote.Config, error) {
	if path := c.String("config"); path != "" {
		return snapnote.LoadConfig(path, false)
	}
	return snapnote.LoadConfig(filepath.Join(snapnote.DefaultDataDir(), "config.toml"), true)
}

func openLibrary(c *cli.Context, opts ...snapnote.LibraryOption) (*snapnote.Library, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts = append(opts, snapnote.WithProgress(c.App.ErrWriter))
	lib, err := snapnote.Open(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return lib, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	var opts []snapnote.LibraryOption
	if c.Bool("deferred") {
		opts = append(opts, snapnote.WithMode(ingestion.ModeDeferred))
	}
	lib, err := openLibrary(c, opts...)
	if err != nil {
		return err
	}
	// Close drains queued enrichment before returning
	defer lib.Close()

	ctx := c.Context
	var failed int
	for _, path := range c.Args().Slice() {
		req, err := buildRequest(c, path)
		if err != nil {
			return err
		}
		rec, err := lib.Ingest(ctx, req)
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", rec.Id, enrichmentState(rec, c.Bool("deferred")), path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be ingested", failed, c.NArg())
	}
	return nil
}

// buildRequest reads path and turns it into an ingest request.
func buildRequest(c *cli.Context, path string) (ingestion.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingestion.Request{}, err
	}
	captured, err := captureTime(c.String("captured-at"), path)
	if err != nil {
		return ingestion.Request{}, err
	}
	return ingestion.Request{
		Owner:       c.String("owner"),
		Payload:     base64.StdEncoding.EncodeToString(data),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		CapturedAt:  captured,
		AppName:     c.String("app"),
		Tags:        c.StringSlice("tags"),
	}, nil
}

// captureTime parses value as RFC 3339 or Unix seconds. An empty value
// falls back to the modification time of path.
func captureTime(value, path string) (int64, error) {
	if value == "" {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		return info.ModTime().Unix(), nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return secs, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("invalid captured-at %q: want RFC 3339 or Unix seconds", value)
	}
	return t.Unix(), nil
}

func listCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	records, err := lib.List(c.Context, c.String("owner"), c.Int("offset"), c.Int("limit"))
	if err != nil {
		return err
	}
	printList(c.App.Writer, records)
	return nil
}

func showCommand(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	rec, err := lib.Get(c.Context, c.String("owner"), id)
	if err != nil {
		return err
	}
	printScreenshot(c.App.Writer, rec)
	return nil
}

func updateCommand(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	var patch core.ScreenshotPatch
	if c.IsSet("note") {
		note := c.String("note")
		patch.Note = &note
	}
	if c.IsSet("tags") {
		patch.Tags = c.StringSlice("tags")
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	if patch.Note == nil && patch.Tags == nil {
		return errors.New("nothing to update: pass --note or --tags")
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	rec, err := lib.Update(c.Context, c.String("owner"), id, patch)
	if err != nil {
		return err
	}
	printScreenshot(c.App.Writer, rec)
	return nil
}

func deleteCommand(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Delete(c.Context, c.String("owner"), id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a search query is required")
	}
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	var monitor *logMonitor
	if c.Bool("explain") {
		monitor = newLogMonitor()
	}
	results, err := lib.Search(c.Context, c.String("owner"), query, c.Int("max-hits"), monitor.orNil())
	if err != nil {
		return err
	}
	printResults(c.App.Writer, results)
	return nil
}

func rescanCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	stats, err := lib.Rescan(c.Context, c.Int("report-interval"))
	if err != nil {
		return fmt.Errorf("rescan failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "scanned %d, enriched %d, failed %d, skipped %d, discarded %d\n",
		stats.Scanned, stats.Enriched, stats.Failed, stats.Skipped, stats.Discarded)
	return nil
}

func reindexCommand(c *cli.Context) error {
	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	aiConfig := lib.Config().AI
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", aiConfig.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	stats, err := lib.Reindex(c.Context, config)
	if err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "reindexed %d of %d, skipped %d, discarded %d\n",
		stats.Reindexed, stats.Total, stats.Skipped, stats.Discarded)
	return nil
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	_, err = cfg.WriteTo(c.App.Writer)
	return err
}

func idArg(c *cli.Context) (core.ID, error) {
	if c.NArg() != 1 {
		return "", errors.New("exactly one screenshot id is required")
	}
	return core.ParseID(c.Args().First())
}

func enrichmentState(rec *core.Screenshot, deferred bool) string {
	switch {
	case rec.Title != nil:
		return "enriched"
	case deferred:
		return "queued"
	default:
		return "not enriched"
	}
}
