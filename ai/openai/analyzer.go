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

package openai

import (
	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/ai/llm"
	"github.com/tmc/langchaingo/llms/openai"
)

// localToken is sent to local OpenAI-compatible services that don't require authentication.
const localToken = "none"

// NewAnalyzer creates a vision analyzer against the OpenAI-compatible host in config.
// It satisfies ai.AnalyzerFactory.
func NewAnalyzer(config *ai.Config) (ai.Analyzer, error) {
	return newAnalyzer(config)
}

func newAnalyzer(config *ai.Config) (*llm.ModelAnalyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	token := config.OpenAIKey
	if token == "" {
		token = localToken
	}
	client, err := openai.New(
		openai.WithBaseURL(config.OpenAIHost),
		openai.WithToken(token),
		openai.WithModel(config.OpenAIModel),
	)
	if err != nil {
		return nil, err
	}
	return llm.NewModelAnalyzer(ai.BackendOpenAI, client, llm.ImageURLPart), nil
}

// NewOpenRouterAnalyzer creates a vision analyzer routed through OpenRouter,
// which speaks the OpenAI chat protocol. It requires config.OpenRouterKey.
// It satisfies ai.AnalyzerFactory.
func NewOpenRouterAnalyzer(config *ai.Config) (ai.Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.OpenRouterKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	client, err := openai.New(
		openai.WithBaseURL(config.OpenRouterHost),
		openai.WithToken(config.OpenRouterKey),
		openai.WithModel(config.OpenRouterModel),
	)
	if err != nil {
		return nil, err
	}
	return llm.NewModelAnalyzer(ai.BackendOpenRouter, client, llm.ImageURLPart), nil
}
