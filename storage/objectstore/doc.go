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

// Package objectstore provides a filesystem storage.ObjectStore.
//
// Images and their JPEG thumbnails are written below a root directory, one
// subdirectory per owner. Access URLs carry an expiry and a keyed BLAKE2b
// signature; RefreshAccessURL re-signs a URL the store issued earlier, even
// once it has expired.
//
//	store, err := objectstore.New("/var/lib/snapnote/objects",
//	    objectstore.WithBaseURL("https://cdn.example.com/objects"),
//	    objectstore.WithSigningKey(key),
//	)
package objectstore
