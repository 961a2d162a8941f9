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

package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of records to embed in one request
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding request
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// MaxInputBytes skips records whose embedding text is longer; zero means no limit
	MaxInputBytes int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Stats summarizes a reindexing run.
type Stats struct {
	Total int
	BatchResult
}

// Reindexer re-embeds every enriched screenshot and refreshes its vector.
type Reindexer struct {
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecordIterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(repo storage.ScreenshotRepository, index storage.VectorIndex, embedder ai.Embedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, index, embedder, config.MaxInputBytes, config.MaxRetries, config.RetryDelay),
		iterator:  NewRecordIterator(repo, config.BatchSize),
	}
}

// Run executes the reindexing operation and reports progress to the
// configured writer. It stops at the first batch that cannot be processed.
func (r *Reindexer) Run(ctx context.Context) (Stats, error) {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count records: %w", err)
	}
	stats := Stats{Total: total}
	if total == 0 {
		fmt.Fprintf(r.progress, "No enriched screenshots found (0 records)\n")
		return stats, nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d screenshots (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, "Reindex", total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(records []*core.Screenshot) error {
		result, err := r.processor.Process(ctx, records)
		stats.add(result)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		processed += len(records)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return stats, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d screenshots in %v (%.1f records/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return stats, nil
}
