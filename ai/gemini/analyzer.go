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

package gemini

import (
	"context"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/ai/llm"
	"github.com/tmc/langchaingo/llms/googleai"
)

// NewAnalyzer creates a Gemini vision analyzer. It requires config.GeminiKey.
// It satisfies ai.AnalyzerFactory.
func NewAnalyzer(config *ai.Config) (ai.Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.GeminiKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	client, err := googleai.New(context.Background(),
		googleai.WithAPIKey(config.GeminiKey),
		googleai.WithDefaultModel(config.GeminiModel),
	)
	if err != nil {
		return nil, err
	}
	return llm.NewModelAnalyzer(ai.BackendGemini, client, llm.BinaryPart), nil
}
