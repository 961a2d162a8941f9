package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/ai/mock"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnricher_RequiresCollaborators(t *testing.T) {
	f := newFixture(t, nil)
	source := StaticAnalyzer("mock", f.analyzer)

	_, err := NewEnricher(nil, f.index, source, f.generator)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
	_, err = NewEnricher(f.repo, nil, source, f.generator)
	assert.ErrorIs(t, err, ErrVectorIndexRequired)
	_, err = NewEnricher(f.repo, f.index, nil, f.generator)
	assert.ErrorIs(t, err, ErrAnalyzerRequired)
	_, err = NewEnricher(f.repo, f.index, source, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewEnricher(f.repo, f.index, source, f.generator, WithStageTimeout(-time.Second))
	assert.Error(t, err)
}

func TestEnrich_Success(t *testing.T) {
	f := newFixture(t, mock.Returning(flowchart()))
	ctx := context.Background()
	rec, data := f.addRecord(t, "alice")

	out := f.enricher.Enrich(ctx, f.job(rec, data))
	require.Equal(t, StatusEnriched, out.Status, "%v", out.Err)
	assert.Equal(t, "mock", out.Provider)

	got, err := f.repo.GetScreenshot(ctx, "alice", rec.Id)
	require.NoError(t, err)
	require.True(t, got.IsEnriched())
	assert.Equal(t, "Flowchart", *got.Title)
	assert.Equal(t, "A system diagram", *got.Description)
	assert.Equal(t, []string{"diagram"}, got.Tags)
	assert.Equal(t, "# Flowchart", *got.Markdown)

	// The indexed vector is the embedding of the persisted fields
	want, err := f.generator.Embed(ctx, &ai.Analysis{
		Title: *got.Title, Description: *got.Description, Tags: got.Tags, Markdown: *got.Markdown,
	})
	require.NoError(t, err)
	entry, err := f.index.Get(ctx, *got.VectorKey)
	require.NoError(t, err)
	assert.Equal(t, want, entry.Vector)
	assert.Equal(t, "alice", entry.Owner)
	assert.Equal(t, rec.Id, entry.RecordId)
}

func TestEnrich_StageFailuresLeaveRecordUntouched(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		wantStage Stage
		wantAs    any
	}{
		{
			name: "analysis error",
			setup: func(f *fixture) {
				f.analyzer.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
					return nil, &ai.AnalysisError{Provider: "mock", Err: errors.New("quota exceeded")}
				}
			},
			wantStage: StageAnalyze,
			wantAs:    new(*ai.AnalysisError),
		},
		{
			name: "partial analysis",
			setup: func(f *fixture) {
				f.analyzer.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
					return &ai.Analysis{Title: "only a title"}, nil
				}
			},
			wantStage: StageAnalyze,
			wantAs:    new(*ai.AnalysisError),
		},
		{
			name: "embedding error",
			setup: func(f *fixture) {
				f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("embedding service unreachable")
				}
			},
			wantStage: StageEmbed,
			wantAs:    new(*ai.EmbeddingError),
		},
		{
			name: "index error",
			setup: func(f *fixture) {
				f.index.addErr = errors.New("index unavailable")
			},
			wantStage: StageIndex,
			wantAs:    new(*storage.IndexError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, mock.Returning(flowchart()))
			tt.setup(f)
			ctx := context.Background()
			rec, data := f.addRecord(t, "alice")

			out := f.enricher.Enrich(ctx, f.job(rec, data))
			require.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, tt.wantStage, out.Stage)

			var stageErr *StageError
			require.ErrorAs(t, out.Err, &stageErr)
			assert.Equal(t, rec.Id, stageErr.RecordID)
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			assert.ErrorAs(t, out.Err, tt.wantAs)

			got, err := f.repo.GetScreenshot(ctx, "alice", rec.Id)
			require.NoError(t, err)
			assertUnenriched(t, got)
			assert.Empty(t, f.index.addedKeys())
		})
	}
}

func TestEnrich_StageTimeout(t *testing.T) {
	analyzer := mock.NewMockAnalyzer()
	analyzer.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f := newFixture(t, analyzer, WithStageTimeout(20*time.Millisecond))
	rec, data := f.addRecord(t, "alice")

	out := f.enricher.Enrich(context.Background(), f.job(rec, data))
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageAnalyze, out.Stage)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

// lateIndex adds the vector only after sleeping past the caller's deadline.
type lateIndex struct {
	storage.VectorIndex
	delay time.Duration
}

func (l lateIndex) Add(ctx context.Context, id core.ID, vector []float32, owner string) (string, error) {
	time.Sleep(l.delay)
	return l.VectorIndex.Add(context.WithoutCancel(ctx), id, vector, owner)
}

func TestEnrich_LateIndexAddIsRemoved(t *testing.T) {
	f := newFixture(t, mock.Returning(flowchart()))
	rec, data := f.addRecord(t, "alice")
	enricher, err := NewEnricher(f.repo, lateIndex{VectorIndex: f.index, delay: 80 * time.Millisecond},
		StaticAnalyzer("mock", f.analyzer), f.generator, WithStageTimeout(20*time.Millisecond))
	require.NoError(t, err)

	out := enricher.Enrich(context.Background(), f.job(rec, data))
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageIndex, out.Stage)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)

	keys := f.index.addedKeys()
	require.Len(t, keys, 1)
	_, err = f.index.Get(context.Background(), keys[0])
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := f.repo.GetScreenshot(context.Background(), "alice", rec.Id)
	require.NoError(t, err)
	assertUnenriched(t, got)
}

func TestEnrich_PanicIsContained(t *testing.T) {
	f := newFixture(t, mock.Returning(flowchart()))
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		panic("embedder exploded")
	}
	rec, data := f.addRecord(t, "alice")

	var out Outcome
	require.NotPanics(t, func() {
		out = f.enricher.Enrich(context.Background(), f.job(rec, data))
	})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageEmbed, out.Stage)
	assert.False(t, f.enricher.InFlight(rec.Id))
}

func TestEnrich_ResolveFailure(t *testing.T) {
	f := newFixture(t, nil)
	registry := ai.NewRegistry(ai.DefaultConfig())
	registry.Register(ai.BackendOpenAI, func(*ai.Config) (ai.Analyzer, error) {
		return nil, ai.ErrMissingAPIKey
	})
	enricher, err := NewEnricher(f.repo, f.index,
		ai.NewResolvedAnalyzer(registry, ai.StaticSelector("unknown")), f.generator)
	require.NoError(t, err)
	rec, data := f.addRecord(t, "alice")

	out := enricher.Enrich(context.Background(), f.job(rec, data))
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageResolve, out.Stage)
	assert.Equal(t, ai.BackendOpenAI, out.Provider)
	assert.ErrorIs(t, out.Err, ai.ErrMissingAPIKey)
}

func TestEnrich_ResolvesBackendPerPass(t *testing.T) {
	f := newFixture(t, nil)
	first := mock.Returning(flowchart())
	second := mock.Returning(flowchart())

	registry := ai.NewRegistry(ai.DefaultConfig())
	registry.Register(ai.BackendOpenAI, func(*ai.Config) (ai.Analyzer, error) { return first, nil })
	registry.Register(ai.BackendGemini, func(*ai.Config) (ai.Analyzer, error) { return second, nil })

	backend := ai.BackendOpenAI
	enricher, err := NewEnricher(f.repo, f.index,
		ai.NewResolvedAnalyzer(registry, ai.SelectorFunc(func() string { return backend })), f.generator)
	require.NoError(t, err)

	rec1, data1 := f.addRecord(t, "alice")
	out := enricher.Enrich(context.Background(), f.job(rec1, data1))
	require.Equal(t, StatusEnriched, out.Status)
	assert.Equal(t, ai.BackendOpenAI, out.Provider)

	backend = ai.BackendGemini
	rec2, data2 := f.addRecord(t, "alice")
	out = enricher.Enrich(context.Background(), f.job(rec2, data2))
	require.Equal(t, StatusEnriched, out.Status)
	assert.Equal(t, ai.BackendGemini, out.Provider)

	assert.Equal(t, 1, first.CallCount())
	assert.Equal(t, 1, second.CallCount())
}

func TestEnrich_SkipsConcurrentPassForSameRecord(t *testing.T) {
	release := make(chan struct{})
	analyzer := mock.NewMockAnalyzer()
	analyzer.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
		<-release
		a := flowchart()
		return &a, nil
	}
	f := newFixture(t, analyzer)
	rec, data := f.addRecord(t, "alice")

	done := make(chan Outcome, 1)
	go func() { done <- f.enricher.Enrich(context.Background(), f.job(rec, data)) }()
	require.Eventually(t, func() bool { return f.enricher.InFlight(rec.Id) }, time.Second, time.Millisecond)

	second := f.enricher.Enrich(context.Background(), f.job(rec, data))
	assert.Equal(t, StatusSkipped, second.Status)

	close(release)
	assert.Equal(t, StatusEnriched, (<-done).Status)
	assert.Equal(t, 1, analyzer.CallCount())
	assert.False(t, f.enricher.InFlight(rec.Id))

	// A later pass is allowed again and overwrites the vector under the same key
	out := f.enricher.Enrich(context.Background(), f.job(rec, data))
	require.Equal(t, StatusEnriched, out.Status)
	keys := f.index.addedKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
}

func TestEnrich_DeletedDuringPassIsDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	rec, data := f.addRecord(t, "alice")
	f.analyzer.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
		require.NoError(t, f.repo.DeleteScreenshot(ctx, "alice", rec.Id))
		a := flowchart()
		return &a, nil
	}

	out := f.enricher.Enrich(context.Background(), f.job(rec, data))
	assert.Equal(t, StatusDiscarded, out.Status)
	assert.NoError(t, out.Err)

	keys := f.index.addedKeys()
	require.Len(t, keys, 1)
	_, err := f.index.Get(context.Background(), keys[0])
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.repo.GetScreenshot(context.Background(), "alice", rec.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// commitFailingRepo rejects every enrichment commit.
type commitFailingRepo struct {
	storage.ScreenshotRepository
}

func (commitFailingRepo) ApplyEnrichment(ctx context.Context, owner string, id core.ID, e core.Enrichment) (*core.Screenshot, error) {
	return nil, errors.New("disk full")
}

func TestEnrich_CommitFailureRemovesVector(t *testing.T) {
	f := newFixture(t, mock.Returning(flowchart()))
	rec, data := f.addRecord(t, "alice")
	enricher, err := NewEnricher(commitFailingRepo{f.repo}, f.index, StaticAnalyzer("mock", f.analyzer), f.generator)
	require.NoError(t, err)

	out := enricher.Enrich(context.Background(), f.job(rec, data))
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageCommit, out.Stage)

	keys := f.index.addedKeys()
	require.Len(t, keys, 1)
	_, err = f.index.Get(context.Background(), keys[0])
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := f.repo.GetScreenshot(context.Background(), "alice", rec.Id)
	require.NoError(t, err)
	assertUnenriched(t, got)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "enriched", StatusEnriched.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "discarded", StatusDiscarded.String())
	assert.Equal(t, "queued", StatusQueued.String())
	assert.Equal(t, "unknown", Status(42).String())
}
