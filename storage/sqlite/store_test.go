package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a file-backed repository in a temp directory.
func setupTestRepo(t *testing.T) *ScreenshotRepository {
	t.Helper()
	repo, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repo.Close()) })
	return repo
}

func newScreenshot(owner string, capturedAt time.Time) *core.Screenshot {
	return &core.Screenshot{
		Owner:        owner,
		ImageURL:     "file:///img.png",
		ThumbnailURL: "file:///img_thumb.jpg",
		Width:        800,
		Height:       600,
		FileSize:     2048,
		ContentType:  "image/png",
		Digest:       core.DigestFromContent([]byte("img")),
		CapturedAt:   capturedAt,
		Note:         "Slack: diagram, v2",
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	repo := setupTestRepo(t)
	assert.NotEmpty(t, repo.Path())

	var version int
	require.NoError(t, repo.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := Open(dir)
	require.NoError(t, err)
	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Unix(1700000000, 0).UTC()))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = Open(dir)
	require.NoError(t, err, "migrations must not be applied twice")
	defer repo.Close()

	got, err := repo.GetScreenshot(ctx, "alice", added.Id)
	require.NoError(t, err)
	assert.Equal(t, added.Note, got.Note)
}

func TestOpen_InMemory(t *testing.T) {
	repo, err := Open("")
	require.NoError(t, err)
	defer repo.Close()

	assert.Empty(t, repo.Path())
	_, err = repo.AddScreenshot(context.Background(), newScreenshot("alice", time.Now().UTC()))
	assert.NoError(t, err)
}

func TestScreenshot_RoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s := newScreenshot("alice", time.Unix(1700000000, 0).UTC())
	added, err := repo.AddScreenshot(ctx, s)
	require.NoError(t, err)
	require.NotEmpty(t, added.Id)

	got, err := repo.GetScreenshot(ctx, "alice", added.Id)
	require.NoError(t, err)
	assert.Equal(t, added.Id, got.Id)
	assert.Equal(t, 800, got.Width)
	assert.Equal(t, int64(2048), got.FileSize)
	assert.Equal(t, int64(1700000000), got.CapturedAt.Unix())
	assert.Equal(t, added.InsertedAt.Truncate(time.Microsecond), got.InsertedAt)
	assert.Nil(t, got.Title)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.Tags)
	assert.Nil(t, got.Markdown)
	assert.Nil(t, got.VectorKey)
}

func TestScreenshot_Duplicate(t *testing.T) {
	repo := setupTestRepo(t)
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

func TestScreenshot_EnrichmentAllOrNothing(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)

	got, err := repo.ApplyEnrichment(ctx, "alice", added.Id, core.Enrichment{
		Title:       "Flowchart",
		Description: "A system diagram",
		Tags:        []string{"diagram"},
		Markdown:    "# Flowchart",
		VectorKey:   "vec:1",
	})
	require.NoError(t, err)
	require.True(t, got.IsEnriched())
	assert.Equal(t, "Flowchart", *got.Title)
	assert.Equal(t, []string{"diagram"}, got.Tags)
	assert.Equal(t, "vec:1", *got.VectorKey)

	_, err = repo.ApplyEnrichment(ctx, "bob", added.Id, core.Enrichment{Title: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.DeleteScreenshot(ctx, "alice", added.Id))
	_, err = repo.ApplyEnrichment(ctx, "alice", added.Id, core.Enrichment{Title: "late"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScreenshot_EmptyTagsAreNotNull(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)

	got, err := repo.ApplyEnrichment(ctx, "alice", added.Id, core.Enrichment{Title: "t", Description: "d", Markdown: "m", VectorKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
}

func TestScreenshot_SetVectorKey(t *testing.T) {
	repo := setupTestRepo(t)
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

func TestScreenshot_Update(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)

	note := "edited"
	got, err := repo.UpdateScreenshot(ctx, "alice", added.Id, core.ScreenshotPatch{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Note)
	assert.Nil(t, got.Tags, "tags untouched when not in patch")

	got, err = repo.UpdateScreenshot(ctx, "alice", added.Id, core.ScreenshotPatch{Tags: []string{"a", "a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Note)
	assert.Equal(t, []string{"a", "b"}, got.Tags)

	_, err = repo.UpdateScreenshot(ctx, "bob", added.Id, core.ScreenshotPatch{Note: &note})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScreenshot_DeleteOwnerScoped(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteScreenshot(ctx, "bob", added.Id), storage.ErrNotFound)
	require.NoError(t, repo.DeleteScreenshot(ctx, "alice", added.Id))
	assert.ErrorIs(t, repo.DeleteScreenshot(ctx, "alice", added.Id), storage.ErrNotFound)

	_, err = repo.GetScreenshot(ctx, "alice", added.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScreenshot_ListNewestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	for _, offset := range []int{1, 3, 0, 2} {
		_, err := repo.AddScreenshot(ctx, newScreenshot("alice", base.Add(time.Duration(offset)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := repo.AddScreenshot(ctx, newScreenshot("bob", base.Add(time.Hour)))
	require.NoError(t, err)

	list, err := repo.ListScreenshots(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i, s := range list {
		assert.Equal(t, "alice", s.Owner)
		assert.Equal(t, base.Add(time.Duration(3-i)*time.Minute), s.CapturedAt)
	}

	page, err := repo.ListScreenshots(ctx, "alice", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, list[2].Id, page[0].Id)

	_, err = repo.ListScreenshots(ctx, "alice", 0, -1)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestScreenshot_ForEach(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	var ids []core.ID
	for i := 0; i < 3; i++ {
		added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
		require.NoError(t, err)
		ids = append(ids, added.Id)
	}
	_, err := repo.ApplyEnrichment(ctx, "alice", ids[0], core.Enrichment{Title: "t", Description: "d", Markdown: "m", VectorKey: "k"})
	require.NoError(t, err)

	var seen []core.ID
	err = repo.ForEachUnenriched(ctx, func(s *core.Screenshot) error {
		seen = append(seen, s.Id)
		_, err := repo.ApplyEnrichment(ctx, s.Owner, s.Id, core.Enrichment{Title: "t", Description: "d", Markdown: "m", VectorKey: "k"})
		return err
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[1:], seen)

	count := 0
	require.NoError(t, repo.ForEachEnriched(ctx, func(s *core.Screenshot) error {
		count++
		return nil
	}))
	assert.Equal(t, 3, count)
}

func TestScanScreenshot_BadTags(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddScreenshot(ctx, newScreenshot("alice", time.Now().UTC()))
	require.NoError(t, err)
	_, err = repo.db.Exec("UPDATE screenshots SET tags = ? WHERE id = ?", sql.NullString{String: "{", Valid: true}, string(added.Id))
	require.NoError(t, err)

	_, err = repo.GetScreenshot(ctx, "alice", added.Id)
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}
