package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.ScreenshotRepository {
	t.Helper()
	repo, index, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		repo.Close()
		backend.Close()
	})
	return repo
}

func newScreenshot(owner string, capturedAt time.Time) *core.Screenshot {
	return &core.Screenshot{
		Owner:        owner,
		ImageURL:     "file:///img.png",
		ThumbnailURL: "file:///img_thumb.jpg",
		Width:        800,
		Height:       600,
		FileSize:     1024,
		ContentType:  "image/png",
		CapturedAt:   capturedAt,
	}
}

func TestScreenshotBasics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Unix(1700000000, 0).UTC()))
	require.NoError(t, err)
	assert.NotEmpty(t, added.Id)
	assert.False(t, added.InsertedAt.IsZero())
	assert.False(t, added.IsEnriched())

	got, err := repo.GetScreenshot(ctx, "alice", added.Id)
	require.NoError(t, err)
	assert.Equal(t, added.Id, got.Id)
	assert.Equal(t, int64(1700000000), got.CapturedAt.Unix())
	assert.Nil(t, got.Title)
	assert.Nil(t, got.Tags)
	assert.Nil(t, got.VectorKey)
}

func TestScreenshot_ValidationRejected(t *testing.T) {
	repo := newTestRepo(t)

	s := newScreenshot("", time.Now().UTC())
	_, err := repo.AddScreenshot(context.Background(), s)
	assert.ErrorIs(t, err, core.ErrInvalidScreenshot)
}

func TestScreenshot_DuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := newScreenshot("alice", time.Now().UTC())
	s.Id = core.NewID()
	_, err := repo.AddScreenshot(ctx, s)
	require.NoError(t, err)

	dup := newScreenshot("alice", time.Now().UTC())
	dup.Id = s.Id
	_, err = repo.AddScreenshot(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestScreenshot_OwnerScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)

	_, err = repo.GetScreenshot(ctx, "bob", added.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	note := "hijacked"
	_, err = repo.UpdateScreenshot(ctx, "bob", added.Id, core.ScreenshotPatch{Note: &note})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.ApplyEnrichment(ctx, "bob", added.Id, core.Enrichment{Title: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = repo.DeleteScreenshot(ctx, "bob", added.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := repo.GetScreenshot(ctx, "alice", added.Id)
	require.NoError(t, err)
	assert.Empty(t, got.Note)
}

func TestScreenshot_ApplyEnrichment(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)

	e := core.Enrichment{
		Title:       "Flowchart",
		Description: "A system diagram",
		Tags:        []string{"diagram"},
		Markdown:    "# Flowchart",
		VectorKey:   "vec:" + added.Id.String(),
	}
	updated, err := repo.ApplyEnrichment(ctx, "alice", added.Id, e)
	require.NoError(t, err)
	assert.True(t, updated.IsEnriched())

	got, err := repo.GetScreenshot(ctx, "alice", added.Id)
	require.NoError(t, err)
	require.True(t, got.IsEnriched())
	assert.Equal(t, "Flowchart", *got.Title)
	assert.Equal(t, "A system diagram", *got.Description)
	assert.Equal(t, []string{"diagram"}, got.Tags)
	assert.Equal(t, "# Flowchart", *got.Markdown)
	assert.Equal(t, e.VectorKey, *got.VectorKey)
	assert.Equal(t, added.CapturedAt, got.CapturedAt, "raw fields untouched")
	assert.Equal(t, added.ImageURL, got.ImageURL)
}

func TestScreenshot_ApplyEnrichmentAfterDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, repo.DeleteScreenshot(ctx, "alice", added.Id))

	_, err = repo.ApplyEnrichment(ctx, "alice", added.Id, core.Enrichment{Title: "late"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.GetScreenshot(ctx, "alice", added.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound, "enrichment must not resurrect a deleted record")
}

func TestScreenshot_SetVectorKey(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)

	_, err = repo.SetVectorKey(ctx, "alice", added.Id, "vec:new")
	assert.ErrorIs(t, err, storage.ErrNotFound, "unenriched records get no key")

	_, err = repo.ApplyEnrichment(ctx, "alice", added.Id, core.Enrichment{
		Title: "t", Description: "d", Tags: []string{"diagram"}, Markdown: "m", VectorKey: "vec:old",
	})
	require.NoError(t, err)
	_, err = repo.UpdateScreenshot(ctx, "alice", added.Id, core.ScreenshotPatch{Tags: []string{"edited"}})
	require.NoError(t, err)

	got, err := repo.SetVectorKey(ctx, "alice", added.Id, "vec:new")
	require.NoError(t, err)
	assert.Equal(t, "vec:new", *got.VectorKey)
	assert.Equal(t, []string{"edited"}, got.Tags)
	assert.Equal(t, "t", *got.Title)

	_, err = repo.SetVectorKey(ctx, "bob", added.Id, "vec:x")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScreenshot_UpdatePatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := newScreenshot("alice", time.Now().UTC())
	s.Note = "Slack: diagram"
	added, err := repo.AddScreenshot(ctx, s)
	require.NoError(t, err)

	note := "edited"
	updated, err := repo.UpdateScreenshot(ctx, "alice", added.Id, core.ScreenshotPatch{
		Note: &note,
		Tags: []string{"mine", "mine", " two "},
	})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Note)
	assert.Equal(t, []string{"mine", "two"}, updated.Tags)
	assert.False(t, updated.UpdatedAt.Before(added.InsertedAt))

	got, err := repo.GetScreenshot(ctx, "alice", added.Id)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Note)
	assert.False(t, got.IsEnriched())
}

func TestScreenshot_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteScreenshot(ctx, "alice", added.Id))

	_, err = repo.GetScreenshot(ctx, "alice", added.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := repo.ListScreenshots(ctx, "alice", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list, "date index entry must be gone too")

	err = repo.DeleteScreenshot(ctx, "alice", added.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScreenshot_ListNewestFirstPerOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	// Insert out of order to make sure ordering comes from CapturedAt
	for _, offset := range []int{2, 0, 3, 1} {
		_, err := repo.AddScreenshot(ctx, newScreenshot("alice", base.Add(time.Duration(offset)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := repo.AddScreenshot(ctx, newScreenshot("bob", base.Add(10*time.Hour)))
	require.NoError(t, err)
	// Owner whose name extends another owner's name
	_, err = repo.AddScreenshot(ctx, newScreenshot("alicex", base.Add(20*time.Hour)))
	require.NoError(t, err)

	list, err := repo.ListScreenshots(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i, s := range list {
		assert.Equal(t, "alice", s.Owner)
		assert.Equal(t, base.Add(time.Duration(3-i)*time.Hour), s.CapturedAt)
	}

	page, err := repo.ListScreenshots(ctx, "alice", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, list[1].Id, page[0].Id)
	assert.Equal(t, list[2].Id, page[1].Id)

	past, err := repo.ListScreenshots(ctx, "alice", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, past)

	_, err = repo.ListScreenshots(ctx, "alice", -1, 5)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestScreenshot_ForEach(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []core.ID
	for i := 0; i < 4; i++ {
		added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
		require.NoError(t, err)
		ids = append(ids, added.Id)
	}
	_, err := repo.ApplyEnrichment(ctx, "alice", ids[0], core.Enrichment{Title: "t", Description: "d", Markdown: "m", VectorKey: "k"})
	require.NoError(t, err)

	var unenriched []core.ID
	err = repo.ForEachUnenriched(ctx, func(s *core.Screenshot) error {
		unenriched = append(unenriched, s.Id)
		// Writing from inside the callback must not deadlock
		_, err := repo.ApplyEnrichment(ctx, s.Owner, s.Id, core.Enrichment{Title: "t", Description: "d", Markdown: "m", VectorKey: "k"})
		return err
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[1:], unenriched)

	count := 0
	err = repo.ForEachEnriched(ctx, func(s *core.Screenshot) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestScreenshot_ConcurrentEnrichAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			repo.ApplyEnrichment(ctx, "alice", added.Id, core.Enrichment{Title: "t", Description: "d", Markdown: "m", VectorKey: "k"})
		}()
		go func() {
			defer wg.Done()
			repo.DeleteScreenshot(ctx, "alice", added.Id)
		}()
		wg.Wait()

		_, err = repo.GetScreenshot(ctx, "alice", added.Id)
		assert.ErrorIs(t, err, storage.ErrNotFound, "delete must win regardless of ordering")
	}
}
