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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/snapnote/ai"
	"github.com/tmc/langchaingo/llms"
)

// parseAttempts is how many times a model is asked again after a response
// that does not parse.
const parseAttempts = 3

// ImagePartFunc converts an image into the content part a model accepts.
type ImagePartFunc func(image ai.Image) llms.ContentPart

// ImageURLPart sends the image as a data: URL, the form OpenAI-compatible
// vision endpoints expect.
func ImageURLPart(image ai.Image) llms.ContentPart {
	return llms.ImageURLPart(image.DataURL())
}

// BinaryPart sends the image as raw bytes with its content type.
func BinaryPart(image ai.Image) llms.ContentPart {
	contentType := image.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	return llms.BinaryPart(contentType, image.Data)
}

// ModelAnalyzer implements ai.Analyzer on top of any langchaingo chat model
// with vision support.
type ModelAnalyzer struct {
	provider  string
	client    llms.Model
	imagePart ImagePartFunc
	logger    *slog.Logger
}

// response is the JSON document the model is asked to produce.
type response struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Markdown    string   `json:"markdown"`
}

// NewModelAnalyzer wraps client as an analyzer reporting failures under provider.
func NewModelAnalyzer(provider string, client llms.Model, imagePart ImagePartFunc) *ModelAnalyzer {
	if imagePart == nil {
		imagePart = ImageURLPart
	}
	return &ModelAnalyzer{
		provider:  provider,
		client:    client,
		imagePart: imagePart,
		logger:    slog.Default().With("component", provider+"-analyzer"),
	}
}

// Provider returns the provider name used in errors.
func (a *ModelAnalyzer) Provider() string {
	return a.provider
}

// Analyze asks the model to describe the image and returns the parsed analysis.
// Malformed responses are retried a bounded number of times; a response that
// parses but lacks one of the four fields is not retried.
func (a *ModelAnalyzer) Analyze(ctx context.Context, image ai.Image) (*ai.Analysis, error) {
	if len(image.Data) == 0 {
		return nil, ai.NewAnalysisError(a.provider, errors.New("empty image"))
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSystemPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				a.imagePart(image),
				llms.TextPart(userPrompt),
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt < parseAttempts; attempt++ {
		resp, err := a.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			a.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, ai.NewAnalysisError(a.provider, err)
		}
		if len(resp.Choices) < 1 {
			a.logger.Debug("no choices returned from model")
			return nil, ai.NewAnalysisError(a.provider, fmt.Errorf("%w: no choices", ai.ErrMalformedResponse))
		}

		analysis, err := parseAnalysis(resp.Choices[0].Content)
		if err == nil {
			a.logger.Debug("analyzed image", "bytes", len(image.Data), "tags", len(analysis.Tags))
			return analysis, nil
		}
		if errors.Is(err, ai.ErrIncompleteAnalysis) {
			return nil, ai.NewAnalysisError(a.provider, err)
		}
		lastErr = err
		a.logger.Warn("error parsing analysis response",
			"attempt", attempt+1,
			"response", resp.Choices[0].Content,
			"err", err)
	}

	a.logger.Error("failed to parse analysis response after retries", "err", lastErr)
	return nil, ai.NewAnalysisError(a.provider, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, lastErr))
}

// Close closes the underlying client if it holds resources.
func (a *ModelAnalyzer) Close() error {
	if c, ok := a.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// parseAnalysis decodes a model response into a validated Analysis.
func parseAnalysis(text string) (*ai.Analysis, error) {
	text = repairJSON(stripCodeFences(text))

	var r response
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, err
	}

	analysis := &ai.Analysis{
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		Markdown:    r.Markdown,
	}
	if err := ai.ValidateAnalysis(analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}
