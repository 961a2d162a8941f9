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

package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
)

const (
	// DefaultMinSimilarity is the cosine similarity below which matches are dropped.
	DefaultMinSimilarity = 0.60

	// verbatimBoost is added to the score of records containing every query word.
	verbatimBoost = 0.3

	// candidateFactor over-fetches from the index so the verbatim boost can
	// promote records that rank just below the cut.
	candidateFactor = 3
)

// Searcher finds a user's screenshots by meaning.
type Searcher struct {
	repository    storage.ScreenshotRepository
	index         storage.VectorIndex
	embedder      ai.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "search")
		return nil
	}
}

// WithMinSimilarity sets the similarity threshold for semantic matches.
// Default is DefaultMinSimilarity.
func WithMinSimilarity(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < -1 || threshold > 1 {
			return errors.New("minimum similarity must be within [-1, 1]")
		}
		s.minSimilarity = threshold
		return nil
	}
}

// NewSearcher creates a new searcher. The embedder must be the one used to
// embed screenshots, or query vectors will not be comparable.
func NewSearcher(
	repository storage.ScreenshotRepository,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		repository:    repository,
		index:         index,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FindSimilar searches the owner's screenshots for the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, owner, query string, maxHits int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, owner, query, maxHits, nil)
}

// FindSimilarWithMonitor searches like FindSimilar and reports each stage to monitor.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, owner, query string, maxHits int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		return []*core.SearchResult{}, nil
	}
	monitor.Start(owner, query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, &ai.EmbeddingError{Err: err}
	}

	matches, err := s.index.FindSimilar(ctx, owner, embedding, s.minSimilarity, maxHits*candidateFactor)
	if err != nil {
		s.logger.Error("error querying for similar screenshots", "owner", owner, "err", err)
		return nil, err
	}
	monitor.AfterSemanticSearch(matches)

	records := make([]*core.Screenshot, 0, len(matches))
	scores := make(map[core.ID]float32, len(matches))
	for _, match := range matches {
		record, err := s.repository.GetScreenshot(ctx, owner, match.RecordId)
		if errors.Is(err, storage.ErrNotFound) {
			// Vector outlived its record
			s.logger.Debug("skipping orphaned vector", "key", match.Key, "record", match.RecordId)
			monitor.OrphanedVector(match)
			continue
		}
		if err != nil {
			s.logger.Error("error retrieving screenshot", "record", match.RecordId, "err", err)
			return nil, err
		}
		records = append(records, record)
		scores[record.Id] = match.Score
	}
	monitor.AfterRecordRetrieval(records)

	results := make([]*core.SearchResult, 0, len(records))
	for _, record := range records {
		score := scores[record.Id]
		if containsAllQueryWords(documentText(record), query) {
			score += verbatimBoost
			monitor.VerbatimHit(record)
		}
		results = append(results, &core.SearchResult{
			Record: record,
			Score:  score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}
