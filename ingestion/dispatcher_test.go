package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeInline, m)

	m, err = ParseMode("deferred")
	require.NoError(t, err)
	assert.Equal(t, ModeDeferred, m)
	assert.Equal(t, "deferred", m.String())

	_, err = ParseMode("eventually")
	assert.Error(t, err)
}

func TestNewDispatcher_Options(t *testing.T) {
	_, err := NewDispatcher(nil)
	assert.ErrorIs(t, err, ErrEnricherRequired)

	f := newFixture(t, nil)
	_, err = NewDispatcher(f.enricher, WithQueueSize(0))
	assert.Error(t, err)

	d, err := NewDispatcher(f.enricher, WithWorkers(0), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, d.workers)
	assert.Equal(t, ModeInline, d.Mode())
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatch_Inline(t *testing.T) {
	f := newFixture(t, mock.Returning(flowchart()))
	d, err := NewDispatcher(f.enricher)
	require.NoError(t, err)
	rec, data := f.addRecord(t, "alice")

	out := d.Dispatch(context.Background(), f.job(rec, data))
	assert.Equal(t, StatusEnriched, out.Status)
	require.NotNil(t, out.Record)
	assert.Equal(t, "Flowchart", *out.Record.Title)
}

func TestDispatch_DeferredDrains(t *testing.T) {
	f := newFixture(t, mock.Returning(flowchart()))
	d, err := NewDispatcher(f.enricher, WithMode(ModeDeferred), WithWorkers(2))
	require.NoError(t, err)

	ctx := context.Background()
	recs := make([]Job, 5)
	for i := range recs {
		rec, data := f.addRecord(t, "alice")
		recs[i] = f.job(rec, data)
	}
	for _, job := range recs {
		assert.Equal(t, StatusQueued, d.Dispatch(ctx, job).Status)
	}

	d.Wait()
	for _, job := range recs {
		got, err := f.repo.GetScreenshot(ctx, "alice", job.ID)
		require.NoError(t, err)
		assert.True(t, got.IsEnriched())
	}
	require.NoError(t, d.Close(ctx))

	out := d.Dispatch(ctx, recs[0])
	assert.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, ErrDispatcherClosed)
}

func TestDispatch_DeferredOverloadIsContained(t *testing.T) {
	release := make(chan struct{})
	analyzer := mock.NewMockAnalyzer()
	analyzer.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
		<-release
		a := flowchart()
		return &a, nil
	}
	f := newFixture(t, analyzer)
	d, err := NewDispatcher(f.enricher, WithMode(ModeDeferred), WithWorkers(1), WithQueueSize(1))
	require.NoError(t, err)

	// One running, one held by the feeder and one queued is the most that fits
	rejected := 0
	for i := 0; i < 5; i++ {
		rec, data := f.addRecord(t, "alice")
		out := d.Dispatch(context.Background(), f.job(rec, data))
		if out.Status == StatusFailed {
			assert.ErrorIs(t, out.Err, ErrQueueFull)
			assert.Equal(t, StageDispatch, out.Stage)
			rejected++
		}
	}
	assert.GreaterOrEqual(t, rejected, 2)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, 5-rejected, analyzer.CallCount())
}

func TestDispatcherClose_CancelsOnDeadline(t *testing.T) {
	analyzer := mock.NewMockAnalyzer()
	analyzer.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f := newFixture(t, analyzer, WithStageTimeout(0))
	d, err := NewDispatcher(f.enricher, WithMode(ModeDeferred), WithWorkers(1))
	require.NoError(t, err)

	rec, data := f.addRecord(t, "alice")
	require.Equal(t, StatusQueued, d.Dispatch(context.Background(), f.job(rec, data)).Status)
	require.Eventually(t, func() bool { return f.enricher.InFlight(rec.Id) }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	got, err := f.repo.GetScreenshot(context.Background(), "alice", rec.Id)
	require.NoError(t, err)
	assertUnenriched(t, got)
}
