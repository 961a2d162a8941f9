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

package snapnote

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/ingestion"
	"github.com/poiesic/snapnote/search"
	"github.com/poiesic/snapnote/storage/objectstore"
)

// Storage drivers for screenshot records.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Environment variables overlaid on top of the config file.
const (
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvOpenRouterKey   = "OPENROUTER_API_KEY"
	EnvGeminiKey       = "GEMINI_API_KEY"
	EnvEmbeddingKey    = "SNAPNOTE_EMBEDDING_KEY"
	EnvSigningKey      = "SNAPNOTE_SIGNING_KEY"
	EnvAnalysisBackend = "SNAPNOTE_ANALYSIS_BACKEND"
)

// Duration is a time.Duration that reads and writes as a Go duration string ("90s", "2m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete snapnote configuration, read from a TOML file.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Objects  ObjectsConfig  `toml:"objects"`
	AI       *ai.Config     `toml:"ai"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// StorageConfig selects where screenshot records and vectors live.
type StorageConfig struct {
	// Driver is the record store: "badger" (default) or "sqlite".
	// Vectors are always kept in Badger.
	Driver string `toml:"driver"`

	// DataDir holds the databases and, unless Objects.Dir is set, the images.
	DataDir string `toml:"data_dir"`

	// InMemory keeps Badger data in memory. Only valid with the badger driver.
	InMemory bool `toml:"in_memory"`
}

// ObjectsConfig configures the image object store.
type ObjectsConfig struct {
	// Dir defaults to <data_dir>/objects.
	Dir string `toml:"dir"`

	// BaseURL is the prefix of handed-out image URLs. Defaults to a file:// URL of Dir.
	BaseURL string `toml:"base_url"`

	// SigningKey is a hex encoded key for access URL signatures.
	// When empty a key is generated once and kept in the objects directory.
	SigningKey string `toml:"signing_key"`

	URLTTL        Duration `toml:"url_ttl"`
	ThumbnailSize int      `toml:"thumbnail_size"`
	MaxPixels     int      `toml:"max_pixels"`
}

// PipelineConfig tunes enrichment and search.
type PipelineConfig struct {
	// Mode is "inline" or "deferred".
	Mode string `toml:"mode"`

	// Workers bounds concurrent deferred enrichments. Zero picks a CPU based default.
	Workers int `toml:"workers"`

	// QueueSize bounds jobs waiting for a worker.
	QueueSize int `toml:"queue_size"`

	// StageTimeout bounds each external call. Zero disables the timeout.
	StageTimeout Duration `toml:"stage_timeout"`

	// MinSimilarity is the cosine similarity floor for semantic search hits.
	MinSimilarity float32 `toml:"min_similarity"`
}

// DefaultDataDir returns ~/.snapnote, or .snapnote when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".snapnote"
	}
	return filepath.Join(home, ".snapnote")
}

// DefaultConfig returns a Config with defaults for a local single-user setup.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:  DriverBadger,
			DataDir: DefaultDataDir(),
		},
		Objects: ObjectsConfig{
			URLTTL:        Duration(objectstore.DefaultURLTTL),
			ThumbnailSize: objectstore.DefaultThumbnailSize,
			MaxPixels:     objectstore.DefaultMaxPixels,
		},
		AI: ai.DefaultConfig(),
		Pipeline: PipelineConfig{
			Mode:          ingestion.ModeInline.String(),
			QueueSize:     ingestion.DefaultQueueSize,
			StageTimeout:  Duration(ingestion.DefaultStageTimeout),
			MinSimilarity: search.DefaultMinSimilarity,
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults and then applies
// the environment overlay. An empty path skips the file.
// A missing file is an error unless allowMissing is set.
func LoadConfig(path string, allowMissing bool) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && allowMissing:
			// defaults
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if cfg.AI == nil {
		cfg.AI = ai.DefaultConfig()
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays secrets from the environment. Set variables win over the file.
// The analysis backend variable is not folded in here; it is read on every
// enrichment so that switching it does not need a restart.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvOpenAIKey, &c.AI.OpenAIKey)
	set(EnvOpenRouterKey, &c.AI.OpenRouterKey)
	set(EnvGeminiKey, &c.AI.GeminiKey)
	set(EnvEmbeddingKey, &c.AI.EmbeddingKey)
	set(EnvSigningKey, &c.Objects.SigningKey)
}

// Validate checks the configuration and fills derived values.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverBadger:
	case DriverSQLite:
		if c.Storage.InMemory {
			return errors.New("config: in_memory requires the badger driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.DataDir == "" && !c.Storage.InMemory {
		return errors.New("config: storage data_dir is required")
	}
	if c.Objects.Dir == "" {
		if c.Storage.DataDir == "" {
			return errors.New("config: objects dir is required for in-memory storage")
		}
		c.Objects.Dir = filepath.Join(c.Storage.DataDir, "objects")
	}
	if _, err := c.signingKey(); err != nil {
		return err
	}
	if c.Objects.URLTTL <= 0 {
		return errors.New("config: objects url_ttl must be positive")
	}
	if c.Objects.ThumbnailSize <= 0 {
		return errors.New("config: objects thumbnail_size must be positive")
	}
	if c.Objects.MaxPixels <= 0 {
		return errors.New("config: objects max_pixels must be positive")
	}
	if _, err := ingestion.ParseMode(c.Pipeline.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Pipeline.Workers < 0 {
		return errors.New("config: pipeline workers cannot be negative")
	}
	if c.Pipeline.QueueSize < 0 {
		return errors.New("config: pipeline queue_size cannot be negative")
	}
	if c.Pipeline.StageTimeout < 0 {
		return errors.New("config: pipeline stage_timeout cannot be negative")
	}
	if c.Pipeline.MinSimilarity < 0 || c.Pipeline.MinSimilarity > 1 {
		return errors.New("config: pipeline min_similarity must be between 0 and 1")
	}
	if c.AI == nil {
		return errors.New("config: ai section is required")
	}
	return c.AI.Validate()
}

func (c *Config) signingKey() ([]byte, error) {
	if c.Objects.SigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Objects.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("config: objects signing_key must be hex: %w", err)
	}
	if len(key) > 64 {
		return nil, errors.New("config: objects signing_key must be at most 64 bytes")
	}
	return key, nil
}

// WriteTo encodes the configuration as TOML with secrets masked.
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	masked := *c
	aiCopy := *c.AI
	masked.AI = &aiCopy
	for _, secret := range []*string{
		&masked.AI.OpenAIKey,
		&masked.AI.OpenRouterKey,
		&masked.AI.GeminiKey,
		&masked.AI.EmbeddingKey,
		&masked.Objects.SigningKey,
	} {
		if *secret != "" {
			*secret = "********"
		}
	}
	data, err := toml.Marshal(&masked)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}
