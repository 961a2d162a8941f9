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

package ingestion

import (
	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/core"
)

// Stage names a step of an enrichment pass.
type Stage string

const (
	StageDispatch Stage = "dispatch"
	StageResolve  Stage = "resolve"
	StageAnalyze  Stage = "analyze"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageCommit   Stage = "commit"
)

// Status is the result of one enrichment attempt.
type Status int

const (
	// StatusEnriched means all five enrichment fields were written.
	StatusEnriched Status = iota
	// StatusFailed means a stage failed and the record was left untouched.
	StatusFailed
	// StatusSkipped means another pass for the same record was already running.
	StatusSkipped
	// StatusDiscarded means the record was deleted while the pass ran.
	StatusDiscarded
	// StatusQueued means the pass was handed to the background workers.
	StatusQueued
)

func (s Status) String() string {
	switch s {
	case StatusEnriched:
		return "enriched"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusDiscarded:
		return "discarded"
	case StatusQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// Job identifies a record and carries the image it was created from.
type Job struct {
	ID    core.ID
	Owner string
	Image ai.Image
}

// Outcome reports what an enrichment pass did. Err is a *StageError when
// Status is StatusFailed.
type Outcome struct {
	Status   Status
	Stage    Stage
	Provider string
	Record   *core.Screenshot
	Err      error
}

// AnalyzerSource picks the analyzer for one enrichment pass.
// *ai.ResolvedAnalyzer implements it.
type AnalyzerSource interface {
	Resolve() (ai.Analyzer, string, error)
}

// StaticAnalyzer returns an AnalyzerSource that always yields analyzer under name.
func StaticAnalyzer(name string, analyzer ai.Analyzer) AnalyzerSource {
	return staticSource{name: name, analyzer: analyzer}
}

type staticSource struct {
	name     string
	analyzer ai.Analyzer
}

func (s staticSource) Resolve() (ai.Analyzer, string, error) {
	return s.analyzer, s.name, nil
}
