package reindex

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
	"github.com/poiesic/snapnote/storage/badger"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (storage.ScreenshotRepository, storage.VectorIndex) {
	t.Helper()
	repo, index, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		repo.Close()
		backend.Close()
	})
	return repo, index
}

func addScreenshot(t *testing.T, repo storage.ScreenshotRepository, owner string, i int) *core.Screenshot {
	t.Helper()
	s, err := repo.AddScreenshot(context.Background(), &core.Screenshot{
		Owner:        owner,
		ImageURL:     fmt.Sprintf("file:///shots/%d.png", i),
		ThumbnailURL: fmt.Sprintf("file:///shots/%d_thumb.jpg", i),
		Width:        800,
		Height:       600,
		FileSize:     1024,
		ContentType:  "image/png",
		CapturedAt:   time.Unix(1700000000+int64(i), 0).UTC(),
	})
	require.NoError(t, err)
	return s
}

// seedEnriched adds n enriched screenshots whose vectors are all [1, 0, 0].
func seedEnriched(t *testing.T, repo storage.ScreenshotRepository, index storage.VectorIndex, owner string, n int) []*core.Screenshot {
	t.Helper()
	ctx := context.Background()
	out := make([]*core.Screenshot, 0, n)
	for i := 0; i < n; i++ {
		s := addScreenshot(t, repo, owner, i)
		key, err := index.Add(ctx, s.Id, []float32{1, 0, 0}, owner)
		require.NoError(t, err)
		s, err = repo.ApplyEnrichment(ctx, owner, s.Id, core.Enrichment{
			Title:       fmt.Sprintf("Screen %d", i),
			Description: "A terminal window",
			Tags:        []string{"terminal"},
			Markdown:    "# Screen",
			VectorKey:   key,
		})
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}
