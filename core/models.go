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

package core

//go:generate go run ../cmd/musgen

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a unique identifier for screenshot records.
// IDs are random UUIDs generated at creation and never change.
type ID string

// NewID returns a fresh random record identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates and canonicalizes a textual record identifier.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidID
	}
	return ID(u.String()), nil
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// DigestFromContent returns the hex encoded BLAKE2b-256 digest of data.
// Identical image bytes always produce identical digests.
func DigestFromContent(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Screenshot is a single ingested screenshot and its optional enrichment.
//
// Raw fields are set at ingestion and never change afterwards (except Note,
// which the owner may edit). Enrichment fields stay nil until the enrichment
// pipeline commits a complete Enrichment.
type Screenshot struct {
	Id           ID
	Owner        string
	ImageURL     string
	ThumbnailURL string
	Width        int
	Height       int
	FileSize     int64
	ContentType  string
	Digest       string    // BLAKE2b digest of the stored image bytes
	CapturedAt   time.Time // When the screenshot was taken, supplied by the client
	Note         string

	Title       *string
	Description *string
	Tags        []string // nil until enriched or edited by the owner
	Markdown    *string
	VectorKey   *string

	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Enrichment is the tuple written by the enrichment pipeline.
// It is always applied as a whole.
type Enrichment struct {
	Title       string
	Description string
	Tags        []string
	Markdown    string
	VectorKey   string
}

// ApplyEnrichment sets all five enrichment fields from e.
func (s *Screenshot) ApplyEnrichment(e Enrichment) {
	s.Title = &e.Title
	s.Description = &e.Description
	s.Markdown = &e.Markdown
	s.VectorKey = &e.VectorKey
	s.Tags = make([]string, len(e.Tags))
	copy(s.Tags, e.Tags)
}

// IsEnriched reports whether the pipeline has committed an enrichment.
func (s *Screenshot) IsEnriched() bool {
	return s.Title != nil && s.Description != nil && s.Markdown != nil && s.VectorKey != nil
}

// ScreenshotPatch carries owner edits. Nil fields are left unchanged.
type ScreenshotPatch struct {
	Note *string
	Tags []string
}

// IsEmpty reports whether the patch changes nothing.
func (p ScreenshotPatch) IsEmpty() bool {
	return p.Note == nil && p.Tags == nil
}

// Apply copies the set fields of p into s.
func (p ScreenshotPatch) Apply(s *Screenshot) {
	if p.Note != nil {
		s.Note = *p.Note
	}
	if p.Tags != nil {
		s.Tags = NormalizeTags(p.Tags)
	}
}

// VectorEntry is a stored embedding and its owning record.
type VectorEntry struct {
	Key      string
	RecordId ID
	Owner    string
	Vector   []float32
}

// SimilarityMatch is a hit from the vector index.
type SimilarityMatch struct {
	RecordId ID
	Key      string
	Score    float32
}

// SearchResult is a search hit with the full record and its relevance score.
type SearchResult struct {
	Record *Screenshot
	Score  float32
}
