package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*ai.Registry, map[string]*mock.MockAnalyzer, map[string]int) {
	t.Helper()
	registry := ai.NewRegistry(ai.DefaultConfig())
	analyzers := make(map[string]*mock.MockAnalyzer)
	builds := make(map[string]int)
	for _, name := range ai.Backends {
		analyzer := mock.Returning(ai.Analysis{Title: name, Description: "d", Tags: []string{name}, Markdown: "m"})
		analyzers[name] = analyzer
		registry.Register(name, func(cfg *ai.Config) (ai.Analyzer, error) {
			builds[name]++
			return analyzer, nil
		})
	}
	t.Cleanup(func() { registry.Close() })
	return registry, analyzers, builds
}

func TestRegistry_Resolve(t *testing.T) {
	registry, analyzers, _ := newTestRegistry(t)

	for _, name := range ai.Backends {
		t.Run(name, func(t *testing.T) {
			analyzer, used, err := registry.Resolve(name)
			require.NoError(t, err)
			assert.Equal(t, name, used)
			assert.Same(t, analyzers[name], analyzer)
		})
	}
}

func TestRegistry_UnknownFallsBackToDefault(t *testing.T) {
	registry, analyzers, _ := newTestRegistry(t)

	for _, name := range []string{"", "claude", "OPENAI"} {
		analyzer, used, err := registry.Resolve(name)
		require.NoError(t, err)
		assert.Equal(t, ai.DefaultBackend, used)
		assert.Same(t, analyzers[ai.DefaultBackend], analyzer)
	}
}

func TestRegistry_BuildsOncePerBackend(t *testing.T) {
	registry, _, builds := newTestRegistry(t)

	for i := 0; i < 3; i++ {
		_, _, err := registry.Resolve(ai.BackendGemini)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, builds[ai.BackendGemini])
	assert.Zero(t, builds[ai.BackendOpenRouter])
}

func TestRegistry_FactoryErrorIsAnalysisError(t *testing.T) {
	registry := ai.NewRegistry(ai.DefaultConfig())
	registry.Register(ai.BackendGemini, func(cfg *ai.Config) (ai.Analyzer, error) {
		return nil, ai.ErrMissingAPIKey
	})

	_, used, err := registry.Resolve(ai.BackendGemini)
	require.Error(t, err)
	assert.Equal(t, ai.BackendGemini, used)

	var ae *ai.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, ai.BackendGemini, ae.Provider)
	assert.ErrorIs(t, err, ai.ErrMissingAPIKey)
}

func TestRegistry_NoDefaultRegistered(t *testing.T) {
	registry := ai.NewRegistry(nil)
	_, _, err := registry.Resolve("anything")
	require.Error(t, err)
}

func TestResolvedAnalyzer_ReadsSelectorEachCall(t *testing.T) {
	registry, analyzers, _ := newTestRegistry(t)

	current := ai.BackendOpenAI
	resolved := ai.NewResolvedAnalyzer(registry, ai.SelectorFunc(func() string { return current }))

	ctx := context.Background()
	result, err := resolved.Analyze(ctx, ai.Image{Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, ai.BackendOpenAI, result.Title)

	current = ai.BackendOpenRouter
	result, err = resolved.Analyze(ctx, ai.Image{Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, ai.BackendOpenRouter, result.Title)

	assert.Equal(t, 1, analyzers[ai.BackendOpenAI].CallCount())
	assert.Equal(t, 1, analyzers[ai.BackendOpenRouter].CallCount())
}

func TestResolvedAnalyzer_WrapsErrorsWithProvider(t *testing.T) {
	registry := ai.NewRegistry(ai.DefaultConfig())
	registry.Register(ai.BackendOpenAI, func(cfg *ai.Config) (ai.Analyzer, error) {
		m := mock.NewMockAnalyzer()
		m.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
			return nil, context.DeadlineExceeded
		}
		return m, nil
	})

	resolved := ai.NewResolvedAnalyzer(registry, ai.StaticSelector(ai.BackendOpenAI))
	_, err := resolved.Analyze(context.Background(), ai.Image{})
	require.Error(t, err)

	var ae *ai.AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ai.BackendOpenAI, ae.Provider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnvSelector(t *testing.T) {
	selector := ai.EnvSelector{Key: "SNAPNOTE_TEST_BACKEND", Fallback: ai.BackendOpenAI}

	t.Setenv("SNAPNOTE_TEST_BACKEND", "")
	assert.Equal(t, ai.BackendOpenAI, selector.Backend())

	t.Setenv("SNAPNOTE_TEST_BACKEND", ai.BackendGemini)
	assert.Equal(t, ai.BackendGemini, selector.Backend())
}
