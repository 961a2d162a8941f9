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
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Backend names the analysis backend (openai, gemini, openrouter).
	// Unknown values fall back to DefaultBackend at resolution time.
	Backend string `toml:"backend"`

	// OpenAIHost is the base URL for the OpenAI-compatible vision API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	OpenAIHost string `toml:"openai_host"`

	// OpenAIKey authenticates against OpenAIHost. Local servers accept any token.
	OpenAIKey string `toml:"openai_key"`

	// OpenAIModel is the vision model used for screenshot analysis.
	// Example: "qwen2.5vl:7b", "gpt-4o-mini"
	OpenAIModel string `toml:"openai_model"`

	// OpenRouterHost is the base URL for the OpenRouter API.
	OpenRouterHost string `toml:"openrouter_host"`

	// OpenRouterKey authenticates against OpenRouter. Required when the backend is openrouter.
	OpenRouterKey string `toml:"openrouter_key"`

	// OpenRouterModel is the vision model routed through OpenRouter.
	OpenRouterModel string `toml:"openrouter_model"`

	// GeminiKey authenticates against the Gemini API. Required when the backend is gemini.
	GeminiKey string `toml:"gemini_key"`

	// GeminiModel is the Gemini vision model.
	GeminiModel string `toml:"gemini_model"`

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string `toml:"embedding_host"`

	// EmbeddingKey authenticates against EmbeddingHost.
	EmbeddingKey string `toml:"embedding_key"`

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string `toml:"embedding_model"`

	// MaxEmbeddingInput is the largest embedding input accepted, in bytes.
	// Default: 32000
	MaxEmbeddingInput int `toml:"max_embedding_input"`

	// RequestsPerSecond limits analysis calls per backend. Zero disables limiting.
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// Burst is the rate limiter burst size.
	// Default: 1
	Burst int `toml:"burst"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend sets the analysis backend name.
func WithBackend(name string) ConfigOption {
	return func(c *Config) {
		c.Backend = name
	}
}

// WithOpenAIHost sets the OpenAI-compatible vision host URL.
func WithOpenAIHost(host string) ConfigOption {
	return func(c *Config) {
		c.OpenAIHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithHost sets both vision and embedding hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.OpenAIHost = host
		c.EmbeddingHost = host
	}
}

// WithOpenAIModel sets the OpenAI vision model identifier.
func WithOpenAIModel(model string) ConfigOption {
	return func(c *Config) {
		c.OpenAIModel = model
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithOpenRouter sets the OpenRouter key and model.
func WithOpenRouter(key, model string) ConfigOption {
	return func(c *Config) {
		c.OpenRouterKey = key
		c.OpenRouterModel = model
	}
}

// WithGemini sets the Gemini key and model.
func WithGemini(key, model string) ConfigOption {
	return func(c *Config) {
		c.GeminiKey = key
		c.GeminiModel = model
	}
}

// WithMaxEmbeddingInput sets the embedding input limit in bytes.
func WithMaxEmbeddingInput(n int) ConfigOption {
	return func(c *Config) {
		c.MaxEmbeddingInput = n
	}
}

// WithRateLimit sets the per-backend analysis rate limit.
func WithRateLimit(rps float64, burst int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
		c.Burst = burst
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, vision and embedding use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		Backend:           DefaultBackend,
		OpenAIHost:        defaultHost,
		OpenAIModel:       "qwen2.5vl:7b",
		OpenRouterHost:    "https://openrouter.ai/api/v1",
		OpenRouterModel:   "google/gemini-2.0-flash-001",
		GeminiModel:       "gemini-2.0-flash",
		EmbeddingHost:     defaultHost,
		EmbeddingModel:    "embeddinggemma",
		MaxEmbeddingInput: 32000,
		Burst:             1,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It lowercases the backend name and adds the /v1 suffix to OpenAI-compatible
// hosts if missing, which is required by most OpenAI-compatible APIs
// (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.OpenAIHost = withV1Suffix(c.OpenAIHost)
	c.EmbeddingHost = withV1Suffix(c.EmbeddingHost)
	c.OpenRouterHost = strings.TrimSuffix(c.OpenRouterHost, "/")
	if c.Burst < 1 {
		c.Burst = 1
	}
}

func withV1Suffix(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	// Remove trailing slash if present before adding /v1
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
// Provider credentials are checked when a provider is constructed, not here,
// so that a missing key only disables that one backend.
func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.MaxEmbeddingInput <= 0 {
		return errors.New("ai config: MaxEmbeddingInput must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("ai config: RequestsPerSecond cannot be negative")
	}
	return nil
}
