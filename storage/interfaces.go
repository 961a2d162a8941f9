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

package storage

import (
	"context"

	"github.com/poiesic/snapnote/core"
)

// ScreenshotRepository provides owner-scoped operations on screenshot records.
// Implementations must be thread-safe and support concurrent access.
//
// Every method taking an owner treats a record owned by someone else exactly
// like a missing record and returns ErrNotFound.
type ScreenshotRepository interface {
	// AddScreenshot stores a new record.
	// Generates an ID if none is set and stamps InsertedAt/UpdatedAt.
	// Returns ErrDuplicateKey if a record with the same ID exists.
	AddScreenshot(ctx context.Context, s *core.Screenshot) (*core.Screenshot, error)

	// GetScreenshot retrieves a single record.
	// Returns ErrNotFound if the record doesn't exist or belongs to another owner.
	GetScreenshot(ctx context.Context, owner string, id core.ID) (*core.Screenshot, error)

	// UpdateScreenshot applies owner edits (note, tags) and bumps UpdatedAt.
	// Returns ErrNotFound if the record doesn't exist or belongs to another owner.
	UpdateScreenshot(ctx context.Context, owner string, id core.ID, patch core.ScreenshotPatch) (*core.Screenshot, error)

	// ApplyEnrichment writes all five enrichment fields in one atomic update.
	// Returns ErrNotFound if the record no longer exists; nothing is written then.
	ApplyEnrichment(ctx context.Context, owner string, id core.ID, e core.Enrichment) (*core.Screenshot, error)

	// SetVectorKey replaces the vector key of an enriched record, leaving the
	// other fields as they are. Returns ErrNotFound if the record doesn't exist
	// or was never enriched.
	SetVectorKey(ctx context.Context, owner string, id core.ID, key string) (*core.Screenshot, error)

	// DeleteScreenshot removes a record and its indices.
	// Returns ErrNotFound if the record doesn't exist or belongs to another owner.
	DeleteScreenshot(ctx context.Context, owner string, id core.ID) error

	// ListScreenshots returns an owner's records ordered by CapturedAt descending.
	// Ties are broken by ID. Returns at most limit records after skipping offset.
	ListScreenshots(ctx context.Context, owner string, offset, limit int) ([]*core.Screenshot, error)

	// ForEachUnenriched calls fn for every record that has no enrichment yet,
	// across all owners. Iteration stops at the first error returned by fn.
	// fn runs outside any storage transaction and may write to the repository.
	ForEachUnenriched(ctx context.Context, fn func(s *core.Screenshot) error) error

	// ForEachEnriched calls fn for every enriched record, across all owners.
	// Same rules as ForEachUnenriched.
	ForEachEnriched(ctx context.Context, fn func(s *core.Screenshot) error) error

	// Close releases resources held by the repository.
	Close() error
}

// VectorEntry is a stored embedding and its owning record.
type VectorEntry = core.VectorEntry

// VectorIndex stores embeddings keyed by an opaque key and scoped by owner.
//
// Keys are derived from the record ID, so adding a vector for a record that
// already has one overwrites it. Retried adds therefore never leave duplicates.
type VectorIndex interface {
	// Add stores vector for recordID under owner and returns its key.
	// Failures are reported as *IndexError.
	Add(ctx context.Context, recordID core.ID, vector []float32, owner string) (string, error)

	// Delete removes the entry for key. A missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (*VectorEntry, error)

	// FindSimilar returns the owner's entries with cosine similarity to vector
	// of at least minSimilarity, best first, at most limit of them.
	FindSimilar(ctx context.Context, owner string, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error)

	// Close releases resources held by the index.
	Close() error
}

// StoredImage describes an image persisted by an ObjectStore.
type StoredImage struct {
	ImageURL     string
	ThumbnailURL string
	Width        int
	Height       int
	FileSize     int64
	ContentType  string
}

// ObjectStore persists image bytes and thumbnails and hands out access URLs.
type ObjectStore interface {
	// StoreImage persists data and a thumbnail for owner.
	StoreImage(ctx context.Context, data []byte, owner, contentType string) (*StoredImage, error)

	// LoadImage reads back the image bytes behind an access URL.
	LoadImage(ctx context.Context, url string) ([]byte, string, error)

	// DeleteImage removes the image and its thumbnail.
	// Objects that are already gone are not an error.
	DeleteImage(ctx context.Context, imageURL, thumbnailURL string) error

	// RefreshAccessURL re-signs url with a fresh expiry.
	RefreshAccessURL(ctx context.Context, url string) (string, error)
}
