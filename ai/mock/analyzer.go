package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/poiesic/snapnote/ai"
)

// MockAnalyzer is a test double for ai.Analyzer.
// It allows custom behavior injection via function fields.
type MockAnalyzer struct {
	// AnalyzeFunc is called by Analyze if set.
	// If nil, returns a complete analysis describing the image.
	AnalyzeFunc func(ctx context.Context, image ai.Image) (*ai.Analysis, error)

	callCount atomic.Int64
}

var _ ai.Analyzer = (*MockAnalyzer)(nil)

// NewMockAnalyzer creates a mock analyzer with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockAnalyzer().
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{}
}

// Analyze returns a canned analysis or delegates to AnalyzeFunc.
func (m *MockAnalyzer) Analyze(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
	m.callCount.Add(1)
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, image)
	}

	kind := strings.TrimPrefix(image.ContentType, "image/")
	if kind == "" {
		kind = "image"
	}
	return &ai.Analysis{
		Title:       fmt.Sprintf("Screenshot (%s)", kind),
		Description: fmt.Sprintf("A %d byte %s screenshot", len(image.Data), kind),
		Tags:        []string{"screenshot", kind},
		Markdown:    fmt.Sprintf("# Screenshot\n\n%d bytes of %s", len(image.Data), kind),
	}, nil
}

// CallCount returns the number of times Analyze was called.
func (m *MockAnalyzer) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockAnalyzer) Reset() {
	m.callCount.Store(0)
	m.AnalyzeFunc = nil
}

// Returning creates a mock analyzer that always returns a copy of a.
func Returning(a ai.Analysis) *MockAnalyzer {
	m := NewMockAnalyzer()
	m.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
		result := a
		result.Tags = append([]string(nil), a.Tags...)
		if result.Tags == nil {
			result.Tags = []string{}
		}
		return &result, nil
	}
	return m
}

// Failing creates a mock analyzer that always fails with an *ai.AnalysisError.
func Failing(provider string, err error) *MockAnalyzer {
	m := NewMockAnalyzer()
	m.AnalyzeFunc = func(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
		return nil, &ai.AnalysisError{Provider: provider, Err: err}
	}
	return m
}
