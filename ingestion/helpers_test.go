package ingestion

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/ai/mock"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
	"github.com/poiesic/snapnote/storage/badger"
	"github.com/poiesic/snapnote/storage/objectstore"
	"github.com/stretchr/testify/require"
)

// recordingIndex wraps a real index, records added keys and injects failures.
type recordingIndex struct {
	storage.VectorIndex

	mu        sync.Mutex
	addErr    error
	deleteErr error
	added     []string
	deleted   []string
}

func (r *recordingIndex) Add(ctx context.Context, id core.ID, vector []float32, owner string) (string, error) {
	r.mu.Lock()
	err := r.addErr
	r.mu.Unlock()
	if err != nil {
		return "", &storage.IndexError{Op: "add", Err: err}
	}
	key, err := r.VectorIndex.Add(ctx, id, vector, owner)
	if err == nil {
		r.mu.Lock()
		r.added = append(r.added, key)
		r.mu.Unlock()
	}
	return key, err
}

func (r *recordingIndex) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	err := r.deleteErr
	r.deleted = append(r.deleted, key)
	r.mu.Unlock()
	if err != nil {
		return &storage.IndexError{Op: "delete", Key: key, Err: err}
	}
	return r.VectorIndex.Delete(ctx, key)
}

func (r *recordingIndex) addedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.added...)
}

// failingObjects injects object store failures.
type failingObjects struct {
	storage.ObjectStore
	storeErr  error
	deleteErr error
}

func (f *failingObjects) StoreImage(ctx context.Context, data []byte, owner, contentType string) (*storage.StoredImage, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	return f.ObjectStore.StoreImage(ctx, data, owner, contentType)
}

func (f *failingObjects) DeleteImage(ctx context.Context, imageURL, thumbnailURL string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.ObjectStore.DeleteImage(ctx, imageURL, thumbnailURL)
}

type fixture struct {
	repo      storage.ScreenshotRepository
	index     *recordingIndex
	objects   *failingObjects
	analyzer  *mock.MockAnalyzer
	embedder  *mock.MockEmbedder
	generator ai.EmbeddingGenerator
	enricher  *Enricher
}

func newFixture(t *testing.T, analyzer *mock.MockAnalyzer, opts ...EnricherOption) *fixture {
	t.Helper()
	repo, index, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		repo.Close()
		backend.Close()
	})

	store, err := objectstore.New(t.TempDir(), objectstore.WithSigningKey([]byte("test")))
	require.NoError(t, err)

	if analyzer == nil {
		analyzer = mock.NewMockAnalyzer()
	}
	f := &fixture{
		repo:     repo,
		index:    &recordingIndex{VectorIndex: index},
		objects:  &failingObjects{ObjectStore: store},
		analyzer: analyzer,
		embedder: mock.NewMockEmbedder(),
	}
	f.generator = ai.NewMetadataEmbedder(f.embedder, "mock", 0)
	f.enricher, err = NewEnricher(f.repo, f.index, StaticAnalyzer("mock", f.analyzer), f.generator, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) ingestor(t *testing.T, opts ...DispatcherOption) (*Ingestor, *Dispatcher) {
	t.Helper()
	d, err := NewDispatcher(f.enricher, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close(context.Background()) })
	in, err := NewIngestor(f.repo, f.objects, d, nil)
	require.NoError(t, err)
	return in, d
}

// addRecord stores an image and an unenriched record for owner directly.
func (f *fixture) addRecord(t *testing.T, owner string) (*core.Screenshot, []byte) {
	t.Helper()
	ctx := context.Background()
	data := pngImage(t)
	stored, err := f.objects.StoreImage(ctx, data, owner, "image/png")
	require.NoError(t, err)
	rec, err := f.repo.AddScreenshot(ctx, &core.Screenshot{
		Owner:        owner,
		ImageURL:     stored.ImageURL,
		ThumbnailURL: stored.ThumbnailURL,
		Width:        stored.Width,
		Height:       stored.Height,
		FileSize:     stored.FileSize,
		ContentType:  stored.ContentType,
		CapturedAt:   capturedAt,
	})
	require.NoError(t, err)
	return rec, data
}

func (f *fixture) job(rec *core.Screenshot, data []byte) Job {
	return Job{ID: rec.Id, Owner: rec.Owner, Image: ai.Image{Data: data, ContentType: "image/png"}}
}

var capturedAt = time.Unix(1700000000, 0).UTC()

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		img.Set(x, x%48, color.RGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngPayload(t *testing.T) string {
	return base64.StdEncoding.EncodeToString(pngImage(t))
}

func flowchart() ai.Analysis {
	return ai.Analysis{
		Title:       "Flowchart",
		Description: "A system diagram",
		Tags:        []string{"diagram"},
		Markdown:    "# Flowchart",
	}
}

func assertUnenriched(t *testing.T, s *core.Screenshot) {
	t.Helper()
	require.Nil(t, s.Title)
	require.Nil(t, s.Description)
	require.Nil(t, s.Tags)
	require.Nil(t, s.Markdown)
	require.Nil(t, s.VectorKey)
}
