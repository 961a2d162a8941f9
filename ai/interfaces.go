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

import "context"

// Analyzer turns image content into structured screenshot metadata.
// Implementations must be thread-safe for concurrent use.
type Analyzer interface {
	// Analyze inspects the image and returns its title, description, tags and
	// markdown summary. An implementation either returns a complete Analysis or
	// fails; it never returns a partially populated result.
	// Failures are reported as *AnalysisError carrying the provider name.
	Analyze(ctx context.Context, image Image) (*Analysis, error)
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingGenerator turns analysis metadata into a single vector.
// Identical metadata yields identical vectors for a given model.
// It never touches record storage or the vector index.
type EmbeddingGenerator interface {
	// Embed returns the vector for the title, description, tags and markdown of a.
	// Failures are reported as *EmbeddingError.
	Embed(ctx context.Context, a *Analysis) ([]float32, error)
}

// AIProvider aggregates the services of one AI vendor for convenient
// initialization and lifecycle management.
type AIProvider interface {
	// Analyzer returns the image analysis service.
	// The returned Analyzer is safe for concurrent use.
	Analyzer() Analyzer

	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
