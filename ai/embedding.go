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

package ai

import (
	"context"
	"fmt"
)

// MetadataEmbedder implements EmbeddingGenerator on top of a text Embedder.
type MetadataEmbedder struct {
	embedder      Embedder
	model         string
	maxInputBytes int
}

var _ EmbeddingGenerator = (*MetadataEmbedder)(nil)

// ModelNamer is implemented by embedders that know their model name.
type ModelNamer interface {
	Model() string
}

// NewMetadataEmbedder creates a generator that embeds EmbeddingText of the
// analysis with embedder. Inputs longer than maxInputBytes are rejected.
// An empty model is taken from embedder when it implements ModelNamer.
func NewMetadataEmbedder(embedder Embedder, model string, maxInputBytes int) *MetadataEmbedder {
	if namer, ok := embedder.(ModelNamer); ok && model == "" {
		model = namer.Model()
	}
	return &MetadataEmbedder{
		embedder:      embedder,
		model:         model,
		maxInputBytes: maxInputBytes,
	}
}

// Embed implements EmbeddingGenerator.
func (m *MetadataEmbedder) Embed(ctx context.Context, a *Analysis) ([]float32, error) {
	if a == nil {
		return nil, &EmbeddingError{Model: m.model, Err: ErrIncompleteAnalysis}
	}
	text := EmbeddingText(a.Title, a.Description, a.Tags, a.Markdown)
	if m.maxInputBytes > 0 && len(text) > m.maxInputBytes {
		return nil, &EmbeddingError{
			Model: m.model,
			Err:   fmt.Errorf("%w: %d bytes exceeds %d", ErrInputTooLarge, len(text), m.maxInputBytes),
		}
	}

	vector, err := m.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Model: m.model, Err: err}
	}
	if len(vector) == 0 {
		return nil, &EmbeddingError{Model: m.model, Err: ErrEmptyEmbedding}
	}
	return vector, nil
}
