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

// Package ingestion saves screenshots and enriches them with AI metadata.
//
// The Ingestor decodes an upload, stores the image through an ObjectStore,
// creates the record and hands it to a Dispatcher. The Dispatcher runs the
// Enricher inline or on an ants worker pool. An enrichment pass resolves the
// analysis backend, analyzes the image, embeds the result, indexes the vector
// and writes all five enrichment fields in one update. Any failure inside a
// pass is logged and contained: the record stays valid, just unenriched.
//
// The Remover deletes a record with its objects and vector, and the
// Rescanner retries enrichment for records that never received it.
package ingestion
