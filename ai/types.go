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
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/poiesic/snapnote/core"
)

// Analysis backends. The set is closed; unknown names resolve to DefaultBackend.
const (
	BackendOpenAI     = "openai"
	BackendGemini     = "gemini"
	BackendOpenRouter = "openrouter"

	DefaultBackend = BackendOpenAI
)

// Backends lists the known analysis backend names.
var Backends = []string{
	BackendOpenAI,
	BackendGemini,
	BackendOpenRouter,
}

// IsKnownBackend reports whether name is one of Backends.
func IsKnownBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

// Image is a self-contained image handed to an Analyzer.
type Image struct {
	Data        []byte
	ContentType string
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL, the transportable form accepted by
// OpenAI-compatible vision endpoints.
func (i Image) DataURL() string {
	contentType := i.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + i.Base64()
}

// Analysis is the structured metadata derived from a screenshot.
type Analysis struct {
	Title       string
	Description string
	Tags        []string
	Markdown    string
}

// ValidateAnalysis checks that all four fields are present and normalizes tags.
// Tags may be empty but not nil.
func ValidateAnalysis(a *Analysis) error {
	if a == nil {
		return ErrIncompleteAnalysis
	}
	a.Title = strings.TrimSpace(a.Title)
	a.Description = strings.TrimSpace(a.Description)
	a.Markdown = strings.TrimSpace(a.Markdown)

	switch {
	case a.Title == "":
		return fmt.Errorf("%w: missing title", ErrIncompleteAnalysis)
	case a.Description == "":
		return fmt.Errorf("%w: missing description", ErrIncompleteAnalysis)
	case a.Markdown == "":
		return fmt.Errorf("%w: missing markdown", ErrIncompleteAnalysis)
	case a.Tags == nil:
		return fmt.Errorf("%w: missing tags", ErrIncompleteAnalysis)
	}
	a.Tags = core.NormalizeTags(a.Tags)
	return nil
}

// EmbeddingText builds the text that is embedded for a screenshot.
// The layout is fixed so equal metadata always yields equal text.
func EmbeddingText(title, description string, tags []string, markdown string) string {
	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(title)
	sb.WriteString("\nDescription: ")
	sb.WriteString(description)
	sb.WriteString("\nTags: ")
	sb.WriteString(strings.Join(tags, ", "))
	sb.WriteString("\n\n")
	sb.WriteString(markdown)
	return sb.String()
}
