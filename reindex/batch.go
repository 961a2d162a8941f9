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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
)

// BatchResult counts what happened to the records of one batch.
type BatchResult struct {
	Reindexed int
	Skipped   int
	Discarded int
}

func (r *BatchResult) add(o BatchResult) {
	r.Reindexed += o.Reindexed
	r.Skipped += o.Skipped
	r.Discarded += o.Discarded
}

// BatchProcessor embeds a batch of enriched screenshots and writes the new
// vectors to the index.
type BatchProcessor struct {
	repo           storage.ScreenshotRepository
	index          storage.VectorIndex
	embedder       ai.Embedder
	maxInputBytes  int
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// Records whose embedding text is longer than maxInputBytes are skipped;
// zero means no limit.
func NewBatchProcessor(repo storage.ScreenshotRepository, index storage.VectorIndex, embedder ai.Embedder, maxInputBytes, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		index:          index,
		embedder:       embedder,
		maxInputBytes:  maxInputBytes,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         slog.Default().With("component", "reindex"),
	}
}

// Process re-embeds the batch. The text of each record is built exactly as
// enrichment builds it, so an unchanged model yields unchanged vectors.
// A record deleted while the batch runs is discarded along with its new vector.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.Screenshot) (BatchResult, error) {
	var result BatchResult

	texts := make([]string, 0, len(records))
	todo := make([]*core.Screenshot, 0, len(records))
	for _, record := range records {
		if !record.IsEnriched() {
			result.Skipped++
			continue
		}
		text := ai.EmbeddingText(*record.Title, *record.Description, record.Tags, *record.Markdown)
		if bp.maxInputBytes > 0 && len(text) > bp.maxInputBytes {
			bp.logger.Warn("embedding text too large, skipping", "record", record.Id, "bytes", len(text))
			result.Skipped++
			continue
		}
		texts = append(texts, text)
		todo = append(todo, record)
	}
	if len(todo) == 0 {
		return result, nil
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if errors.Is(err, ai.ErrInputTooLarge) {
			return Permanent(err)
		}
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return result, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(embeddings) != len(todo) {
		return result, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(todo), len(embeddings))
	}

	for i, record := range todo {
		key, err := bp.index.Add(ctx, record.Id, embeddings[i], record.Owner)
		if err != nil {
			return result, fmt.Errorf("failed to index record %s: %w", record.Id, err)
		}

		// Only the key changes; owner edits made since the batch was read survive.
		_, err = bp.repo.SetVectorKey(ctx, record.Owner, record.Id, key)
		if errors.Is(err, storage.ErrNotFound) {
			if derr := bp.index.Delete(ctx, key); derr != nil {
				bp.logger.Warn("failed to remove vector of deleted record", "record", record.Id, "err", derr)
			}
			result.Discarded++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to update record %s: %w", record.Id, err)
		}

		// Drop a vector stored under a different key by an older index layout
		if old := *record.VectorKey; old != "" && old != key {
			if derr := bp.index.Delete(ctx, old); derr != nil {
				bp.logger.Warn("failed to remove superseded vector", "record", record.Id, "key", old, "err", derr)
			}
		}
		result.Reindexed++
	}
	return result, nil
}
