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

package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
)

// ScreenshotRepository implements storage.ScreenshotRepository using BadgerDB.
type ScreenshotRepository struct {
	backend *Backend
}

var _ storage.ScreenshotRepository = (*ScreenshotRepository)(nil)

// NewScreenshotRepository creates a new ScreenshotRepository.
//
// Returns storage.ScreenshotRepository interface to enforce abstraction.
func NewScreenshotRepository(backend *Backend) (storage.ScreenshotRepository, error) {
	return newScreenshotRepository(backend), nil
}

func newScreenshotRepository(backend *Backend) *ScreenshotRepository {
	return &ScreenshotRepository{backend: backend}
}

// Close releases resources. The backend is owned by the caller.
func (r *ScreenshotRepository) Close() error {
	return nil
}

// AddScreenshot stores a new record and its date index entry.
func (r *ScreenshotRepository) AddScreenshot(ctx context.Context, s *core.Screenshot) (*core.Screenshot, error) {
	if err := core.ValidateScreenshot(s); err != nil {
		return nil, err
	}
	if s.Id == "" {
		s.Id = core.NewID()
	}
	s.InsertedAt = time.Now().UTC()
	s.UpdatedAt = s.InsertedAt

	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeScreenshotKey(s.Id)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := tx.Set(key, storage.MarshalScreenshot(s)); err != nil {
			return err
		}
		dateKey := makeScreenshotDateKey(s.Owner, s.CapturedAt, s.Id)
		return tx.Set(dateKey, storage.MarshalID(s.Id))
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetScreenshot retrieves a single owner-scoped record.
func (r *ScreenshotRepository) GetScreenshot(ctx context.Context, owner string, id core.ID) (*core.Screenshot, error) {
	var result *core.Screenshot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readOwnedScreenshot(tx, owner, id)
		return err
	}, false)
	return result, err
}

// UpdateScreenshot applies owner edits.
func (r *ScreenshotRepository) UpdateScreenshot(ctx context.Context, owner string, id core.ID, patch core.ScreenshotPatch) (*core.Screenshot, error) {
	return r.modify(owner, id, func(s *core.Screenshot) {
		patch.Apply(s)
	})
}

// ApplyEnrichment writes the enrichment tuple in a single transaction.
func (r *ScreenshotRepository) ApplyEnrichment(ctx context.Context, owner string, id core.ID, e core.Enrichment) (*core.Screenshot, error) {
	return r.modify(owner, id, func(s *core.Screenshot) {
		s.ApplyEnrichment(e)
	})
}

// SetVectorKey replaces the vector key of an enriched record.
func (r *ScreenshotRepository) SetVectorKey(ctx context.Context, owner string, id core.ID, key string) (*core.Screenshot, error) {
	var result *core.Screenshot
	err := r.backend.Update(func(tx *badger.Txn) error {
		s, err := readOwnedScreenshot(tx, owner, id)
		if err != nil {
			return err
		}
		if !s.IsEnriched() {
			return storage.ErrNotFound
		}
		s.VectorKey = &key
		s.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeScreenshotKey(id), storage.MarshalScreenshot(s)); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// modify reads, changes and rewrites one record atomically.
// The date index is untouched since CapturedAt never changes.
func (r *ScreenshotRepository) modify(owner string, id core.ID, change func(s *core.Screenshot)) (*core.Screenshot, error) {
	var result *core.Screenshot
	err := r.backend.Update(func(tx *badger.Txn) error {
		s, err := readOwnedScreenshot(tx, owner, id)
		if err != nil {
			return err
		}
		change(s)
		s.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeScreenshotKey(id), storage.MarshalScreenshot(s)); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteScreenshot removes a record and its date index entry.
func (r *ScreenshotRepository) DeleteScreenshot(ctx context.Context, owner string, id core.ID) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		s, err := readOwnedScreenshot(tx, owner, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(makeScreenshotDateKey(s.Owner, s.CapturedAt, s.Id)); err != nil {
			return err
		}
		return tx.Delete(makeScreenshotKey(id))
	})
}

// ListScreenshots walks the owner's date index backwards, newest first.
// A limit of zero returns everything after offset.
func (r *ScreenshotRepository) ListScreenshots(ctx context.Context, owner string, offset, limit int) ([]*core.Screenshot, error) {
	if offset < 0 || limit < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Screenshot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeOwnerDatePrefix(owner)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		iter := tx.NewIterator(opts)
		defer iter.Close()

		skipped := 0
		for iter.Seek(prefixEnd(prefix)); iter.ValidForPrefix(prefix); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			if skipped < offset {
				skipped++
				continue
			}

			var recordID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				recordID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			record, err := readScreenshot(tx, recordID)
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)

	return results, err
}

// ForEachUnenriched calls fn for every record without enrichment.
func (r *ScreenshotRepository) ForEachUnenriched(ctx context.Context, fn func(s *core.Screenshot) error) error {
	return r.forEach(ctx, func(s *core.Screenshot) bool { return !s.IsEnriched() }, fn)
}

// ForEachEnriched calls fn for every enriched record.
func (r *ScreenshotRepository) ForEachEnriched(ctx context.Context, fn func(s *core.Screenshot) error) error {
	return r.forEach(ctx, (*core.Screenshot).IsEnriched, fn)
}

// forEach snapshots the matching records first so that fn never runs
// inside a read transaction.
func (r *ScreenshotRepository) forEach(ctx context.Context, match func(s *core.Screenshot) bool, fn func(s *core.Screenshot) error) error {
	var matched []*core.Screenshot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(screenshotPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.Screenshot
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalScreenshot(val)
				return err
			}); err != nil {
				return err
			}
			if match(record) {
				matched = append(matched, record)
			}
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	for _, record := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}

// Helper methods

// readScreenshot reads a record by ID. A missing record yields nil, nil.
func readScreenshot(tx *badger.Txn, id core.ID) (*core.Screenshot, error) {
	item, err := tx.Get(makeScreenshotKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.Screenshot
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalScreenshot(val)
		return unmarshalErr
	})
	return record, err
}

// readOwnedScreenshot reads a record and enforces ownership.
func readOwnedScreenshot(tx *badger.Txn, owner string, id core.ID) (*core.Screenshot, error) {
	record, err := readScreenshot(tx, id)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Owner != owner {
		return nil, storage.ErrNotFound
	}
	return record, nil
}
