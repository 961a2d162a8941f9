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
	"errors"
	"fmt"

	"github.com/poiesic/snapnote/core"
)

var (
	// ErrRepositoryRequired is returned when a screenshot repository is not provided.
	ErrRepositoryRequired = errors.New("screenshot repository required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrObjectStoreRequired is returned when an object store is not provided.
	ErrObjectStoreRequired = errors.New("object store required")

	// ErrAnalyzerRequired is returned when no analyzer source is provided.
	ErrAnalyzerRequired = errors.New("analyzer required")

	// ErrEmbedderRequired is returned when an embedding generator is not provided.
	ErrEmbedderRequired = errors.New("embedding generator required")

	// ErrEnricherRequired is returned when a dispatcher is created without an enricher.
	ErrEnricherRequired = errors.New("enricher required")

	// ErrDispatcherRequired is returned when an ingestor is created without a dispatcher.
	ErrDispatcherRequired = errors.New("dispatcher required")

	// ErrQueueFull is recorded when deferred enrichment cannot be queued.
	ErrQueueFull = errors.New("enrichment queue full")

	// ErrDispatcherClosed is recorded when enrichment is dispatched after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// MalformedInputError reports an ingestion payload rejected before any
// storage work was done.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err == nil {
		return "malformed input: " + e.Reason
	}
	return fmt.Sprintf("malformed input: %s: %v", e.Reason, e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// StorageError reports an object store or record store failure that
// prevented a screenshot from being saved or removed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// StageError describes a contained enrichment failure.
type StageError struct {
	RecordID core.ID
	Stage    Stage
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("enrichment of %s failed at %s: %v", e.RecordID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
