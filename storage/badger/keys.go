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

package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/snapnote/core"
)

// Key prefixes for different data types
const (
	screenshotPrefix     = "shot:"
	screenshotDatePrefix = "shotd:"
	vectorPrefix         = "vec:"
	vectorOwnerPrefix    = "veco:"
)

// ownerSep terminates the owner component of composite keys so that one
// owner's prefix never matches another owner whose name extends it.
const ownerSep = 0x00

// makeScreenshotKey generates a key for a screenshot record by ID.
func makeScreenshotKey(id core.ID) []byte {
	return []byte(screenshotPrefix + string(id))
}

// makeOwnerDatePrefix generates the prefix of an owner's date index entries.
// Format: prefix owner 0x00
func makeOwnerDatePrefix(owner string) []byte {
	buf := make([]byte, 0, len(screenshotDatePrefix)+len(owner)+1)
	buf = append(buf, screenshotDatePrefix...)
	buf = append(buf, owner...)
	return append(buf, ownerSep)
}

// makeScreenshotDateKey generates a composite key for the owner date index.
// Format: prefix owner 0x00 capturedAt id
func makeScreenshotDateKey(owner string, capturedAt time.Time, id core.ID) []byte {
	prefix := makeOwnerDatePrefix(owner)
	buf := make([]byte, len(prefix)+8, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(capturedAt.UnixMicro()))
	return append(buf, id...)
}

// makeVectorKey generates the index key for a record's vector.
// One record has at most one vector, so the key is derived from its ID.
func makeVectorKey(id core.ID) string {
	return vectorPrefix + string(id)
}

// makeOwnerVectorPrefix generates the prefix of an owner's vector entries.
func makeOwnerVectorPrefix(owner string) []byte {
	buf := make([]byte, 0, len(vectorOwnerPrefix)+len(owner)+1)
	buf = append(buf, vectorOwnerPrefix...)
	buf = append(buf, owner...)
	return append(buf, ownerSep)
}

// makeOwnerVectorKey generates the owner index key for a vector.
// Format: prefix owner 0x00 vectorKey
func makeOwnerVectorKey(owner, key string) []byte {
	return append(makeOwnerVectorPrefix(owner), key...)
}

// prefixEnd returns the smallest key greater than every key with prefix,
// the seek target for reverse iteration.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix)+1)
	copy(end, prefix)
	end[len(prefix)] = 0xFF
	return end
}
