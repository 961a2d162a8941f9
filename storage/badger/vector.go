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
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
)

var errEmptyVector = errors.New("empty vector")

// VectorIndex implements storage.VectorIndex using BadgerDB.
//
// Each record has at most one entry, stored under a key derived from its ID;
// adding again for the same record overwrites. A secondary owner index keeps
// similarity search scoped to one owner without scanning everyone's vectors.
type VectorIndex struct {
	backend *Backend
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a new VectorIndex.
//
// Returns storage.VectorIndex interface to enforce abstraction.
func NewVectorIndex(backend *Backend) (storage.VectorIndex, error) {
	return newVectorIndex(backend), nil
}

func newVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{backend: backend}
}

// Close releases resources. The backend is owned by the caller.
func (v *VectorIndex) Close() error {
	return nil
}

// Add stores the vector as given; vectors are not normalized.
func (v *VectorIndex) Add(ctx context.Context, recordID core.ID, vector []float32, owner string) (string, error) {
	key := makeVectorKey(recordID)
	if len(vector) == 0 {
		return "", &storage.IndexError{Op: "add", Key: key, Err: errEmptyVector}
	}
	if err := ctx.Err(); err != nil {
		return "", &storage.IndexError{Op: "add", Key: key, Err: err}
	}

	entry := &storage.VectorEntry{
		Key:      key,
		RecordId: recordID,
		Owner:    owner,
		Vector:   vector,
	}
	err := v.backend.Update(func(tx *badger.Txn) error {
		old, err := readVectorEntry(tx, key)
		if err != nil {
			return err
		}
		if old != nil && old.Owner != owner {
			if err := tx.Delete(makeOwnerVectorKey(old.Owner, key)); err != nil {
				return err
			}
		}
		if err := tx.Set([]byte(key), storage.MarshalVectorEntry(entry)); err != nil {
			return err
		}
		return tx.Set(makeOwnerVectorKey(owner, key), nil)
	})
	if err != nil {
		return "", &storage.IndexError{Op: "add", Key: key, Err: err}
	}
	return key, nil
}

// Delete removes the entry and its owner index. Unknown keys are ignored.
func (v *VectorIndex) Delete(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, vectorPrefix) {
		return nil
	}
	err := v.backend.Update(func(tx *badger.Txn) error {
		entry, err := readVectorEntry(tx, key)
		if err != nil || entry == nil {
			return err
		}
		if err := tx.Delete(makeOwnerVectorKey(entry.Owner, key)); err != nil {
			return err
		}
		return tx.Delete([]byte(key))
	})
	if err != nil {
		return &storage.IndexError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Get returns the entry stored under key.
func (v *VectorIndex) Get(ctx context.Context, key string) (*storage.VectorEntry, error) {
	if !strings.HasPrefix(key, vectorPrefix) {
		return nil, storage.ErrNotFound
	}
	var entry *storage.VectorEntry
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		entry, err = readVectorEntry(tx, key)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return entry, err
}

// FindSimilar ranks the owner's vectors by cosine similarity to vector.
func (v *VectorIndex) FindSimilar(ctx context.Context, owner string, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	var results []core.SimilarityMatch

	err := v.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeOwnerVectorPrefix(owner)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(iter.Item().Key()[len(prefix):])
			entry, err := readVectorEntry(tx, key)
			if err != nil {
				return err
			}
			if entry == nil {
				continue
			}

			similarity := cosineSimilarity(vector, entry.Vector)
			if similarity >= minSimilarity {
				results = append(results, core.SimilarityMatch{
					RecordId: entry.RecordId,
					Key:      key,
					Score:    similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, &storage.IndexError{Op: "search", Err: err}
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b core.SimilarityMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(string(a.RecordId), string(b.RecordId))
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// readVectorEntry reads an entry by key. A missing entry yields nil, nil.
func readVectorEntry(tx *badger.Txn, key string) (*storage.VectorEntry, error) {
	item, err := tx.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entry *storage.VectorEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalVectorEntry(val)
		return unmarshalErr
	})
	return entry, err
}
