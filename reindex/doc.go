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

// Package reindex rebuilds the vector index from enriched screenshots.
//
// Run it after switching embedding models: every enriched record's title,
// description, tags and markdown are embedded again in batches, the vector
// is re-added to the index and the record's vector key is updated. Embedding
// calls are retried with exponential backoff and progress is written to an
// io.Writer.
package reindex
