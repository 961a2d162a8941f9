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
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/search"
)

func printList(w io.Writer, records []*core.Screenshot) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no screenshots")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCAPTURED\tTITLE\tTAGS")
	for _, s := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.Id, s.CapturedAt.Local().Format(time.DateTime), deref(s.Title, "-"), strings.Join(s.Tags, ","))
	}
	tw.Flush()
}

func printScreenshot(w io.Writer, s *core.Screenshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", s.Id)
	fmt.Fprintf(tw, "Captured\t%s\n", s.CapturedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(tw, "Image\t%s\n", s.ImageURL)
	fmt.Fprintf(tw, "Thumbnail\t%s\n", s.ThumbnailURL)
	fmt.Fprintf(tw, "Size\t%dx%d, %d bytes, %s\n", s.Width, s.Height, s.FileSize, s.ContentType)
	fmt.Fprintf(tw, "Note\t%s\n", s.Note)
	fmt.Fprintf(tw, "Title\t%s\n", deref(s.Title, "-"))
	fmt.Fprintf(tw, "Description\t%s\n", deref(s.Description, "-"))
	fmt.Fprintf(tw, "Tags\t%s\n", strings.Join(s.Tags, ", "))
	tw.Flush()
	if s.Markdown != nil {
		fmt.Fprintf(w, "\n%s\n", *s.Markdown)
	}
}

func printResults(w io.Writer, results []*core.SearchResult) {
	fmt.Fprintf(w, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(w, "%d: %s (%s)[%0.3f]\n", i, deref(hit.Record.Title, "untitled"), hit.Record.Id, hit.Score)
	}
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

// logMonitor logs every search stage for --explain.
type logMonitor struct {
	logger  *slog.Logger
	started time.Time
}

var _ search.SearchMonitor = (*logMonitor)(nil)

func newLogMonitor() *logMonitor {
	return &logMonitor{logger: slog.Default().With("component", "search-explain")}
}

// orNil keeps a nil *logMonitor from becoming a non-nil interface.
func (m *logMonitor) orNil() search.SearchMonitor {
	if m == nil {
		return nil
	}
	return m
}

func (m *logMonitor) Start(owner, query string) {
	m.started = time.Now()
	m.logger.Info("search started", "owner", owner, "query", query)
}

func (m *logMonitor) AfterSemanticSearch(matches []core.SimilarityMatch) {
	for _, match := range matches {
		m.logger.Info("vector match", "record", match.RecordId, "score", match.Score)
	}
	m.logger.Info("semantic search done", "matches", len(matches))
}

func (m *logMonitor) OrphanedVector(match core.SimilarityMatch) {
	m.logger.Warn("vector without record", "key", match.Key, "record", match.RecordId)
}

func (m *logMonitor) AfterRecordRetrieval(records []*core.Screenshot) {
	m.logger.Info("records retrieved", "count", len(records))
}

func (m *logMonitor) VerbatimHit(record *core.Screenshot) {
	m.logger.Info("verbatim match boosted", "record", record.Id)
}

func (m *logMonitor) Finish(results []*core.SearchResult) {
	m.logger.Info("search finished", "results", len(results), "elapsed", time.Since(m.started))
}
