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
	"errors"
	"log/slog"

	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
)

// Remover deletes a screenshot with its stored objects and vector.
type Remover struct {
	repository storage.ScreenshotRepository
	objects    storage.ObjectStore
	index      storage.VectorIndex
	logger     *slog.Logger
}

// NewRemover creates a remover.
func NewRemover(repository storage.ScreenshotRepository, objects storage.ObjectStore, index storage.VectorIndex, logger *slog.Logger) (*Remover, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remover{
		repository: repository,
		objects:    objects,
		index:      index,
		logger:     logger.With("component", "remover"),
	}, nil
}

// Remove deletes the owner's screenshot id: stored image and thumbnail
// first, then the vector, then the record. storage.ErrNotFound is returned
// when the record does not exist or belongs to someone else. A failed vector
// delete is logged and does not stop the removal; object and record
// failures do, as *StorageError.
func (r *Remover) Remove(ctx context.Context, owner string, id core.ID) error {
	record, err := r.repository.GetScreenshot(ctx, owner, id)
	if err != nil {
		return err
	}

	if err := r.objects.DeleteImage(ctx, record.ImageURL, record.ThumbnailURL); err != nil {
		return &StorageError{Op: "delete image", Err: err}
	}

	if record.VectorKey != nil && *record.VectorKey != "" {
		if err := r.index.Delete(ctx, *record.VectorKey); err != nil {
			r.logger.Warn("failed to delete vector, leaving it orphaned",
				"record", id, "key", *record.VectorKey, "err", err)
		}
	}

	if err := r.repository.DeleteScreenshot(ctx, owner, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return &StorageError{Op: "delete record", Err: err}
	}
	r.logger.Info("deleted screenshot", "record", id, "owner", owner)
	return nil
}
