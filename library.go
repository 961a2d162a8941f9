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

package snapnote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/ai/gemini"
	"github.com/poiesic/snapnote/ai/openai"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/ingestion"
	"github.com/poiesic/snapnote/reindex"
	"github.com/poiesic/snapnote/search"
	"github.com/poiesic/snapnote/storage"
	"github.com/poiesic/snapnote/storage/badger"
	"github.com/poiesic/snapnote/storage/objectstore"
	"github.com/poiesic/snapnote/storage/sqlite"
)

// DefaultListLimit is used by List when no positive limit is given.
const DefaultListLimit = 50

// Library is an open screenshot library: record store, vector index,
// object store and the enrichment pipeline wired together.
type Library struct {
	config     *Config
	backend    *badger.Backend
	records    storage.ScreenshotRepository
	vectors    storage.VectorIndex
	objects    storage.ObjectStore
	provider   ai.AIProvider
	registry   *ai.Registry
	analyzers  *ai.ResolvedAnalyzer
	enricher   *ingestion.Enricher
	dispatcher *ingestion.Dispatcher
	ingestor   *ingestion.Ingestor
	remover    *ingestion.Remover
	searcher   *search.Searcher
	progress   io.Writer
	base       *slog.Logger
	logger     *slog.Logger
}

// LibraryOption configures a Library.
type LibraryOption func(*libraryOptions)

type libraryOptions struct {
	provider  ai.AIProvider
	factories map[string]ai.AnalyzerFactory
	selector  ai.Selector
	mode      *ingestion.Mode
	progress  io.Writer
	logger    *slog.Logger
}

// WithProvider supplies the embedding provider instead of building the
// OpenAI-compatible one from the config. Its analyzer serves the openai backend.
func WithProvider(p ai.AIProvider) LibraryOption {
	return func(o *libraryOptions) {
		o.provider = p
	}
}

// WithAnalyzerFactory registers or replaces the factory for an analysis backend.
func WithAnalyzerFactory(name string, factory ai.AnalyzerFactory) LibraryOption {
	return func(o *libraryOptions) {
		o.factories[name] = factory
	}
}

// WithSelector sets how the analysis backend is chosen for each pass.
// Default reads SNAPNOTE_ANALYSIS_BACKEND, falling back to the configured backend.
func WithSelector(s ai.Selector) LibraryOption {
	return func(o *libraryOptions) {
		o.selector = s
	}
}

// WithMode overrides the configured enrichment mode.
func WithMode(mode ingestion.Mode) LibraryOption {
	return func(o *libraryOptions) {
		o.mode = &mode
	}
}

// WithProgress sets where rescans and reindexes report progress.
func WithProgress(w io.Writer) LibraryOption {
	return func(o *libraryOptions) {
		o.progress = w
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) LibraryOption {
	return func(o *libraryOptions) {
		o.logger = logger
	}
}

// Open opens the library described by config.
func Open(config *Config, opts ...LibraryOption) (*Library, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	options := &libraryOptions{
		factories: make(map[string]ai.AnalyzerFactory),
		selector:  ai.EnvSelector{Key: EnvAnalysisBackend, Fallback: config.AI.Backend},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	lib := &Library{
		config:   config,
		progress: options.progress,
		base:     options.logger,
		logger:   options.logger.With("component", "library"),
	}
	if err := lib.open(options); err != nil {
		lib.Close()
		return nil, err
	}
	return lib, nil
}

func (lib *Library) open(options *libraryOptions) error {
	var err error
	cfg := lib.config

	// Vectors always live in Badger; records follow the configured driver
	lib.backend, err = badger.OpenBackend(filepath.Join(cfg.Storage.DataDir, "badger"), cfg.Storage.InMemory)
	if err != nil {
		return fmt.Errorf("opening badger: %w", err)
	}
	switch cfg.Storage.Driver {
	case DriverSQLite:
		lib.records, err = sqlite.NewScreenshotRepository(cfg.Storage.DataDir)
	default:
		lib.records, err = badger.NewScreenshotRepository(lib.backend)
	}
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	lib.vectors, err = badger.NewVectorIndex(lib.backend)
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}

	objectOpts := []objectstore.Option{
		objectstore.WithURLTTL(time.Duration(cfg.Objects.URLTTL)),
		objectstore.WithThumbnailSize(cfg.Objects.ThumbnailSize),
		objectstore.WithMaxPixels(cfg.Objects.MaxPixels),
	}
	if cfg.Objects.BaseURL != "" {
		objectOpts = append(objectOpts, objectstore.WithBaseURL(cfg.Objects.BaseURL))
	}
	key, err := cfg.signingKey()
	if err != nil {
		return err
	}
	if key != nil {
		objectOpts = append(objectOpts, objectstore.WithSigningKey(key))
	}
	lib.objects, err = objectstore.NewObjectStore(cfg.Objects.Dir, objectOpts...)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}

	lib.provider = options.provider
	if lib.provider == nil {
		lib.provider, err = openai.NewProvider(cfg.AI)
		if err != nil {
			return fmt.Errorf("creating AI provider: %w", err)
		}
	}

	provider := lib.provider
	lib.registry = ai.NewRegistry(cfg.AI)
	lib.registry.Register(ai.BackendOpenAI, func(*ai.Config) (ai.Analyzer, error) {
		return provider.Analyzer(), nil
	})
	lib.registry.Register(ai.BackendOpenRouter, openai.NewOpenRouterAnalyzer)
	lib.registry.Register(ai.BackendGemini, gemini.NewAnalyzer)
	for name, factory := range options.factories {
		lib.registry.Register(name, factory)
	}
	lib.analyzers = ai.NewResolvedAnalyzer(lib.registry, options.selector)

	embedding := ai.NewMetadataEmbedder(lib.provider.Embedder(), "", cfg.AI.MaxEmbeddingInput)
	lib.enricher, err = ingestion.NewEnricher(lib.records, lib.vectors, lib.analyzers, embedding,
		ingestion.WithStageTimeout(time.Duration(cfg.Pipeline.StageTimeout)),
		ingestion.WithEnricherLogger(options.logger),
	)
	if err != nil {
		return err
	}

	mode, err := ingestion.ParseMode(cfg.Pipeline.Mode)
	if err != nil {
		return err
	}
	if options.mode != nil {
		mode = *options.mode
	}
	dispatchOpts := []ingestion.DispatcherOption{
		ingestion.WithMode(mode),
		ingestion.WithLogger(options.logger),
	}
	if cfg.Pipeline.Workers > 0 {
		dispatchOpts = append(dispatchOpts, ingestion.WithWorkers(cfg.Pipeline.Workers))
	}
	if cfg.Pipeline.QueueSize > 0 {
		dispatchOpts = append(dispatchOpts, ingestion.WithQueueSize(cfg.Pipeline.QueueSize))
	}
	lib.dispatcher, err = ingestion.NewDispatcher(lib.enricher, dispatchOpts...)
	if err != nil {
		return err
	}

	lib.ingestor, err = ingestion.NewIngestor(lib.records, lib.objects, lib.dispatcher, options.logger)
	if err != nil {
		return err
	}
	lib.remover, err = ingestion.NewRemover(lib.records, lib.objects, lib.vectors, options.logger)
	if err != nil {
		return err
	}
	lib.searcher, err = search.NewSearcher(lib.records, lib.vectors, lib.provider.Embedder(),
		search.WithLogger(options.logger),
		search.WithMinSimilarity(cfg.Pipeline.MinSimilarity),
	)
	return err
}

// Close drains pending enrichment and releases everything in reverse order of opening.
func (lib *Library) Close() error {
	var errs []error
	if lib.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(lib.config.Pipeline.StageTimeout)+10*time.Second)
		if err := lib.dispatcher.Close(ctx); err != nil {
			lib.logger.Error("error closing dispatcher", "err", err)
			errs = append(errs, err)
		}
		cancel()
	}
	if lib.registry != nil {
		if err := lib.registry.Close(); err != nil {
			lib.logger.Error("error closing analyzers", "err", err)
			errs = append(errs, err)
		}
	}
	if lib.provider != nil {
		if err := lib.provider.Close(); err != nil {
			lib.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if lib.vectors != nil {
		if err := lib.vectors.Close(); err != nil {
			lib.logger.Error("error closing vector index", "err", err)
			errs = append(errs, err)
		}
	}
	if lib.records != nil {
		if err := lib.records.Close(); err != nil {
			lib.logger.Error("error closing record store", "err", err)
			errs = append(errs, err)
		}
	}
	if lib.backend != nil {
		if err := lib.backend.Close(); err != nil {
			lib.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the library was opened with.
func (lib *Library) Config() *Config {
	return lib.config
}

// Ingest stores a screenshot and starts its enrichment.
func (lib *Library) Ingest(ctx context.Context, req ingestion.Request) (*core.Screenshot, error) {
	return lib.ingestor.Ingest(ctx, req)
}

// Delete removes a screenshot, its image objects and its vector.
func (lib *Library) Delete(ctx context.Context, owner string, id core.ID) error {
	return lib.remover.Remove(ctx, owner, id)
}

// Search runs a semantic search over the owner's screenshots.
func (lib *Library) Search(ctx context.Context, owner, query string, maxHits int, monitor search.SearchMonitor) ([]*core.SearchResult, error) {
	results, err := lib.searcher.FindSimilarWithMonitor(ctx, owner, query, maxHits, monitor)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		lib.refresh(ctx, r.Record)
	}
	return results, nil
}

// Get returns one screenshot with freshly signed image URLs.
func (lib *Library) Get(ctx context.Context, owner string, id core.ID) (*core.Screenshot, error) {
	s, err := lib.records.GetScreenshot(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	lib.refresh(ctx, s)
	return s, nil
}

// List returns a page of the owner's screenshots, newest first, with freshly signed image URLs.
func (lib *Library) List(ctx context.Context, owner string, offset, limit int) ([]*core.Screenshot, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	records, err := lib.records.ListScreenshots(ctx, owner, offset, limit)
	if err != nil {
		return nil, err
	}
	for _, s := range records {
		lib.refresh(ctx, s)
	}
	return records, nil
}

// Update applies owner edits to a screenshot's note and tags.
func (lib *Library) Update(ctx context.Context, owner string, id core.ID, patch core.ScreenshotPatch) (*core.Screenshot, error) {
	if patch.Tags != nil {
		patch.Tags = core.NormalizeTags(patch.Tags)
	}
	s, err := lib.records.UpdateScreenshot(ctx, owner, id, patch)
	if err != nil {
		return nil, err
	}
	lib.refresh(ctx, s)
	return s, nil
}

// Rescan runs an enrichment pass for every screenshot that has none yet.
func (lib *Library) Rescan(ctx context.Context, reportInterval int) (ingestion.RescanStats, error) {
	rescanner, err := ingestion.NewRescanner(lib.records, lib.objects, lib.enricher, lib.progress, reportInterval, lib.base)
	if err != nil {
		return ingestion.RescanStats{}, err
	}
	return rescanner.Run(ctx)
}

// Reindex re-embeds every enriched screenshot with the configured embedder.
func (lib *Library) Reindex(ctx context.Context, config *reindex.Config) (reindex.Stats, error) {
	if config == nil {
		config = reindex.DefaultConfig()
	}
	if config.MaxInputBytes == 0 {
		config.MaxInputBytes = lib.config.AI.MaxEmbeddingInput
	}
	progress := lib.progress
	if progress == nil {
		progress = io.Discard
	}
	return reindex.NewReindexer(lib.records, lib.vectors, lib.provider.Embedder(), config, progress).Run(ctx)
}

// WaitForEnrichment blocks until every queued deferred pass has finished.
func (lib *Library) WaitForEnrichment() {
	lib.dispatcher.Wait()
}

// Enricher returns the enrichment orchestrator.
func (lib *Library) Enricher() *ingestion.Enricher {
	return lib.enricher
}

// Repository returns the screenshot record store.
func (lib *Library) Repository() storage.ScreenshotRepository {
	return lib.records
}

// VectorIndex returns the vector index.
func (lib *Library) VectorIndex() storage.VectorIndex {
	return lib.vectors
}

// refresh re-signs the record's image URLs. Failures keep the stored URLs.
func (lib *Library) refresh(ctx context.Context, s *core.Screenshot) {
	if s == nil {
		return
	}
	if u, err := lib.objects.RefreshAccessURL(ctx, s.ImageURL); err == nil {
		s.ImageURL = u
	} else {
		lib.logger.Warn("could not refresh image URL", "record", s.Id, "err", err)
	}
	if s.ThumbnailURL == "" {
		return
	}
	if u, err := lib.objects.RefreshAccessURL(ctx, s.ThumbnailURL); err == nil {
		s.ThumbnailURL = u
	}
}
