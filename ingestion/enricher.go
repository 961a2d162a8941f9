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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
)

// DefaultStageTimeout bounds each external call of an enrichment pass.
const DefaultStageTimeout = 2 * time.Minute

// Enricher runs single enrichment passes: resolve backend, analyze, embed,
// index, commit. A pass never returns an error to its caller; failures are
// logged and reported in the Outcome, and leave the record's enrichment
// fields untouched.
//
// Callers must not start a second pass for a record whose pass is still
// running. Enrich enforces this within one process by skipping duplicates;
// it does not coordinate across processes.
type Enricher struct {
	repository   storage.ScreenshotRepository
	index        storage.VectorIndex
	analyzers    AnalyzerSource
	embedder     ai.EmbeddingGenerator
	stageTimeout time.Duration
	inFlight     sync.Map
	logger       *slog.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher) error

// WithStageTimeout bounds the analyze, embed and index stages individually.
// Zero disables the bound. Default is DefaultStageTimeout.
func WithStageTimeout(d time.Duration) EnricherOption {
	return func(e *Enricher) error {
		if d < 0 {
			return fmt.Errorf("stage timeout cannot be negative: %s", d)
		}
		e.stageTimeout = d
		return nil
	}
}

// WithEnricherLogger sets a custom logger.
// Default is slog.Default().
func WithEnricherLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "enricher")
		return nil
	}
}

// NewEnricher creates an enricher from its collaborators.
func NewEnricher(
	repository storage.ScreenshotRepository,
	index storage.VectorIndex,
	analyzers AnalyzerSource,
	embedder ai.EmbeddingGenerator,
	opts ...EnricherOption,
) (*Enricher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if analyzers == nil {
		return nil, ErrAnalyzerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Enricher{
		repository:   repository,
		index:        index,
		analyzers:    analyzers,
		embedder:     embedder,
		stageTimeout: DefaultStageTimeout,
		logger:       slog.Default().With("component", "enricher"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// InFlight reports whether a pass for id is currently running.
func (e *Enricher) InFlight(id core.ID) bool {
	_, ok := e.inFlight.Load(id)
	return ok
}

// Enrich performs at most one enrichment pass for the job's record.
func (e *Enricher) Enrich(ctx context.Context, job Job) (out Outcome) {
	if _, running := e.inFlight.LoadOrStore(job.ID, struct{}{}); running {
		e.logger.Warn("enrichment already in flight, skipping", "record", job.ID, "owner", job.Owner)
		return Outcome{Status: StatusSkipped}
	}
	defer e.inFlight.Delete(job.ID)

	stage := StageResolve
	provider := ""
	defer func() {
		if r := recover(); r != nil {
			out = e.fail(job, stage, provider, fmt.Errorf("panic: %v", r))
		}
	}()

	analyzer, provider, err := e.analyzers.Resolve()
	if err != nil {
		return e.fail(job, stage, provider, err)
	}

	stage = StageAnalyze
	var analysis *ai.Analysis
	err = e.bounded(ctx, func(ctx context.Context) error {
		var err error
		analysis, err = analyzer.Analyze(ctx, job.Image)
		if err == nil {
			err = ai.ValidateAnalysis(analysis)
		}
		return err
	})
	if err != nil {
		return e.fail(job, stage, provider, ai.NewAnalysisError(provider, err))
	}

	stage = StageEmbed
	var vector []float32
	err = e.bounded(ctx, func(ctx context.Context) error {
		var err error
		vector, err = e.embedder.Embed(ctx, analysis)
		return err
	})
	if err != nil {
		return e.fail(job, stage, provider, err)
	}

	stage = StageIndex
	var key string
	err = e.bounded(ctx, func(ctx context.Context) error {
		var err error
		key, err = e.index.Add(ctx, job.ID, vector, job.Owner)
		return err
	})
	if err != nil {
		if key != "" {
			// The add landed after the deadline.
			e.dropVector(ctx, job, key)
		}
		return e.fail(job, stage, provider, err)
	}

	stage = StageCommit
	record, err := e.repository.ApplyEnrichment(ctx, job.Owner, job.ID, core.Enrichment{
		Title:       analysis.Title,
		Description: analysis.Description,
		Tags:        core.NormalizeTags(analysis.Tags),
		Markdown:    analysis.Markdown,
		VectorKey:   key,
	})
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted while we worked; drop the vector we just added.
		e.logger.Info("record deleted during enrichment, discarding result", "record", job.ID, "owner", job.Owner)
		e.dropVector(ctx, job, key)
		return Outcome{Status: StatusDiscarded, Stage: stage, Provider: provider}
	}
	if err != nil {
		e.dropVector(ctx, job, key)
		return e.fail(job, stage, provider, err)
	}

	e.logger.Info("enriched screenshot", "record", job.ID, "owner", job.Owner, "provider", provider, "tags", len(record.Tags))
	return Outcome{Status: StatusEnriched, Stage: stage, Provider: provider, Record: record}
}

// dropVector removes a vector added by a pass that did not commit, so search
// never returns a record whose enrichment is missing.
func (e *Enricher) dropVector(ctx context.Context, job Job, key string) {
	if err := e.index.Delete(context.WithoutCancel(ctx), key); err != nil {
		e.logger.Warn("failed to remove vector of unenriched record", "record", job.ID, "key", key, "err", err)
	}
}

// bounded runs fn under the stage timeout.
func (e *Enricher) bounded(ctx context.Context, fn func(context.Context) error) error {
	if e.stageTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()
	err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		// A stage that ignored its deadline still failed it.
		err = ctx.Err()
	}
	return err
}

func (e *Enricher) fail(job Job, stage Stage, provider string, err error) Outcome {
	e.logger.Error("enrichment failed",
		"record", job.ID,
		"owner", job.Owner,
		"stage", stage,
		"provider", provider,
		"err", err)
	return Outcome{
		Status:   StatusFailed,
		Stage:    stage,
		Provider: provider,
		Err:      &StageError{RecordID: job.ID, Stage: stage, Err: err},
	}
}
