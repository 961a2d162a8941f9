// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Analyzer, ai.Embedder,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	analysis, err := mockProvider.Analyzer().Analyze(ctx, img)
//
//	// Custom behavior injection
//	mockAnalyzer := mock.NewMockAnalyzer()
//	mockAnalyzer.AnalyzeFunc = func(ctx context.Context, img ai.Image) (*ai.Analysis, error) {
//	    return nil, errors.New("quota exceeded")
//	}
//
//	// Check call counts
//	count := mockAnalyzer.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//   - MockAnalyzer: a complete analysis derived from the image size and content type
//   - MockEmbedder: deterministic 384-dimensional vectors based on text hash
package mock
