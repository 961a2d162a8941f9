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

// Package sqlite provides a relational screenshot record store on SQLite.
//
// It uses the pure-Go modernc.org/sqlite driver, so no cgo toolchain is
// needed. The schema is created and upgraded from embedded migrations when
// the store is opened. Only records live here; vectors go to a
// storage.VectorIndex.
package sqlite
