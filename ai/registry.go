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
	"errors"
	"io"
	"log/slog"
	"sync"
)

// AnalyzerFactory constructs the analyzer for one backend.
type AnalyzerFactory func(config *Config) (Analyzer, error)

// Registry maps backend names to analyzers.
//
// Resolution is done per call: callers pass the currently selected backend
// name every time. Constructed analyzers are kept per name so that switching
// back and forth does not rebuild clients.
type Registry struct {
	config    *Config
	factories map[string]AnalyzerFactory
	built     map[string]Analyzer
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewRegistry creates an empty registry that builds analyzers from config.
func NewRegistry(config *Config) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	return &Registry{
		config:    config,
		factories: make(map[string]AnalyzerFactory),
		built:     make(map[string]Analyzer),
		logger:    slog.Default().With("component", "analyzer-registry"),
	}
}

// Register installs the factory for a backend name, replacing any previous one.
func (r *Registry) Register(name string, factory AnalyzerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	if old, ok := r.built[name]; ok {
		closeAnalyzer(old)
		delete(r.built, name)
	}
}

// Resolve returns the analyzer for name and the backend name actually used.
// Unknown or unregistered names fall back to DefaultBackend.
func (r *Registry) Resolve(name string) (Analyzer, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[name]
	if !ok {
		if name != "" {
			r.logger.Warn("unknown analysis backend, using default", "backend", name, "default", DefaultBackend)
		}
		name = DefaultBackend
		factory, ok = r.factories[name]
		if !ok {
			return nil, name, NewAnalysisError(name, errors.New("no analyzer registered"))
		}
	}

	if analyzer, ok := r.built[name]; ok {
		return analyzer, name, nil
	}

	analyzer, err := factory(r.config)
	if err != nil {
		return nil, name, NewAnalysisError(name, err)
	}
	if r.config.RequestsPerSecond > 0 {
		analyzer = NewRateLimitedAnalyzer(analyzer, r.config.RequestsPerSecond, r.config.Burst)
	}
	r.built[name] = analyzer
	r.logger.Debug("constructed analyzer", "backend", name)
	return analyzer, name, nil
}

// Close releases every constructed analyzer that holds resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, analyzer := range r.built {
		if err := closeAnalyzer(analyzer); err != nil {
			errs = append(errs, err)
		}
		delete(r.built, name)
	}
	return errors.Join(errs...)
}

func closeAnalyzer(a Analyzer) error {
	if c, ok := a.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ResolvedAnalyzer binds a selector to a registry and resolves on every call.
type ResolvedAnalyzer struct {
	registry *Registry
	selector Selector
}

// NewResolvedAnalyzer creates an Analyzer that re-reads the selected backend on each call.
func NewResolvedAnalyzer(registry *Registry, selector Selector) *ResolvedAnalyzer {
	return &ResolvedAnalyzer{registry: registry, selector: selector}
}

// Resolve returns the analyzer for the currently selected backend.
func (ra *ResolvedAnalyzer) Resolve() (Analyzer, string, error) {
	return ra.registry.Resolve(ra.selector.Backend())
}

// Analyze implements Analyzer.
func (ra *ResolvedAnalyzer) Analyze(ctx context.Context, image Image) (*Analysis, error) {
	analyzer, name, err := ra.Resolve()
	if err != nil {
		return nil, err
	}
	result, err := analyzer.Analyze(ctx, image)
	if err != nil {
		return nil, NewAnalysisError(name, err)
	}
	return result, nil
}
