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

// Package storage provides the storage abstraction layer for snapnote.
//
// This package defines the contracts of the three collaborators the
// ingestion pipeline depends on, decoupling storage implementation from
// business logic:
//
//   - ScreenshotRepository: durable, owner-scoped screenshot records
//   - VectorIndex: embeddings keyed by an opaque key and scoped by owner
//   - ObjectStore: image bytes, thumbnails and signed access URLs
//
// # Implementations
//
//   - storage/badger: embedded key-value store for records and vectors
//   - storage/sqlite: relational record store
//   - storage/objectstore: filesystem object store with signed URLs
//
// # Constructor Return Type Pattern
//
// Public constructors return the interface types defined here:
//
//	repo, err := badger.NewScreenshotRepository(backend)  // returns storage.ScreenshotRepository
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Ownership
//
// Every read, update and delete takes the owner explicitly. A record that
// belongs to someone else is indistinguishable from a missing one: both yield
// ErrNotFound.
//
// # Serialization
//
// Key-value backends encode records with the MUS format (see core.ScreenshotMUS
// and core.VectorEntryMUS, generated by cmd/musgen).
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
