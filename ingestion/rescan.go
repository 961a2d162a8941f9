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

package ingestion

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/reindex"
	"github.com/poiesic/snapnote/storage"
)

// RescanStats summarizes a Rescanner run.
type RescanStats struct {
	Scanned   int
	Enriched  int
	Failed    int
	Skipped   int
	Discarded int
}

// Rescanner re-runs enrichment for records that were never enriched.
// Enrichment is not retried on its own; this is the job that does it when
// an operator asks.
type Rescanner struct {
	repository storage.ScreenshotRepository
	objects    storage.ObjectStore
	enricher   *Enricher
	progress   io.Writer
	interval   int
	logger     *slog.Logger
}

// NewRescanner creates a rescanner. When progress is non-nil, a progress
// line is written to it every reportInterval records.
func NewRescanner(repository storage.ScreenshotRepository, objects storage.ObjectStore, enricher *Enricher, progress io.Writer, reportInterval int, logger *slog.Logger) (*Rescanner, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if enricher == nil {
		return nil, ErrEnricherRequired
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rescanner{
		repository: repository,
		objects:    objects,
		enricher:   enricher,
		progress:   progress,
		interval:   reportInterval,
		logger:     logger.With("component", "rescanner"),
	}, nil
}

// Run enriches every unenriched record, one at a time. Per-record failures
// are counted, not returned; only listing failures and cancellation end the run early.
func (r *Rescanner) Run(ctx context.Context) (RescanStats, error) {
	var pending []*core.Screenshot
	err := r.repository.ForEachUnenriched(ctx, func(s *core.Screenshot) error {
		pending = append(pending, s)
		return nil
	})
	if err != nil {
		return RescanStats{}, err
	}

	stats := RescanStats{}
	var tracker *reindex.ProgressTracker
	if r.progress != nil && len(pending) > 0 {
		tracker = reindex.NewProgressTracker(r.progress, "Rescan", len(pending), r.interval)
		tracker.Start()
		defer tracker.Finish()
	}

	r.logger.Info("rescanning unenriched screenshots", "records", len(pending))
	for _, record := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++

		data, contentType, err := r.objects.LoadImage(ctx, record.ImageURL)
		if err != nil {
			r.logger.Error("failed to load image for rescan", "record", record.Id, "err", err)
			stats.Failed++
		} else {
			outcome := r.enricher.Enrich(ctx, Job{
				ID:    record.Id,
				Owner: record.Owner,
				Image: ai.Image{Data: data, ContentType: firstNonEmpty(contentType, record.ContentType)},
			})
			switch outcome.Status {
			case StatusEnriched:
				stats.Enriched++
			case StatusSkipped:
				stats.Skipped++
			case StatusDiscarded:
				stats.Discarded++
			default:
				stats.Failed++
			}
		}
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	r.logger.Info("rescan complete", "scanned", stats.Scanned, "enriched", stats.Enriched, "failed", stats.Failed)
	return stats, nil
}
