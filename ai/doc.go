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

// Package ai provides abstractions for the AI services used by snapnote.
//
// This package defines interfaces for image analysis and text embeddings.
// Business logic depends on these abstractions rather than on a specific
// vendor, so analysis backends can be swapped per call.
//
// # Design Principles
//
// The package is designed around four key interfaces:
//
//   - Analyzer: Turns a screenshot into a title, description, tags and markdown
//   - Embedder: Generates vector embeddings from text
//   - EmbeddingGenerator: Turns an Analysis into the vector stored for a screenshot
//   - AIProvider: Aggregates the services of one vendor
//
// # Backends
//
// Analysis backends are registered by name in a Registry and resolved on every
// call through a Selector. An unknown backend name falls back to DefaultBackend
// with a warning. Analyzers are constructed lazily, so a backend without
// credentials only fails when it is actually selected.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (local servers, OpenAI, OpenRouter)
//   - ai/gemini: Google Gemini
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, gemini.NewAnalyzer, etc.) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockAnalyzer, mock.NewMockEmbedder) return CONCRETE types so tests
// can inject behavior and assert on call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	registry := ai.NewRegistry(cfg)
//	registry.Register(ai.BackendOpenAI, openai.NewAnalyzer)
//	registry.Register(ai.BackendGemini, gemini.NewAnalyzer)
//	analyzer := ai.NewResolvedAnalyzer(registry, ai.EnvSelector{Key: "SNAPNOTE_ANALYSIS_BACKEND"})
//
//	analysis, err := analyzer.Analyze(ctx, ai.Image{Data: png, ContentType: "image/png"})
package ai
