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
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse indicates a provider response could not be parsed.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrIncompleteAnalysis indicates an analysis lacked one of its four fields.
	ErrIncompleteAnalysis = errors.New("incomplete analysis")

	// ErrInputTooLarge indicates the embedding input exceeds the accepted size.
	ErrInputTooLarge = errors.New("embedding input too large")

	// ErrEmptyEmbedding indicates the embedder returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding")

	// ErrMissingAPIKey indicates a hosted provider was selected without credentials.
	ErrMissingAPIKey = errors.New("missing API key")
)

// AnalysisError reports a failed image analysis.
type AnalysisError struct {
	Provider string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed (%s): %v", e.Provider, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewAnalysisError wraps err unless it already is an *AnalysisError.
func NewAnalysisError(provider string, err error) error {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return err
	}
	return &AnalysisError{Provider: provider, Err: err}
}

// EmbeddingError reports a failed embedding generation.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("embedding failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding failed (%s): %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
