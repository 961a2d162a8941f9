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

	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
)

const (
	// DefaultBatchSize is the default number of records handed to fn at once
	DefaultBatchSize = 100
)

// RecordIterator walks every enriched screenshot in batches.
type RecordIterator struct {
	repo      storage.ScreenshotRepository
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// A batchSize <= 0 selects DefaultBatchSize.
func NewRecordIterator(repo storage.ScreenshotRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// Count returns the number of enriched screenshots.
func (it *RecordIterator) Count(ctx context.Context) (int, error) {
	n := 0
	err := it.repo.ForEachEnriched(ctx, func(*core.Screenshot) error {
		n++
		return nil
	})
	return n, err
}

// ForEach calls fn with consecutive batches of enriched screenshots.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.Screenshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]*core.Screenshot, 0, it.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.Screenshot, 0, it.batchSize)
		return ctx.Err()
	}

	err := it.repo.ForEachEnriched(ctx, func(s *core.Screenshot) error {
		batch = append(batch, s)
		if len(batch) == it.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}
