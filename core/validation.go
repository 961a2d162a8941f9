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

package core

import (
	"fmt"
	"strings"
	"time"
)

// MaxClockSkew is how far in the future a capture timestamp may lie.
// Clients stamp screenshots with their own clock.
const MaxClockSkew = 5 * time.Minute

// ValidateScreenshot validates a Screenshot according to domain rules.
//
// Validation rules:
//   - Owner must not be empty
//   - ImageURL must not be empty
//   - Width and Height must be positive
//   - CapturedAt must be set and not beyond MaxClockSkew in the future
//
// NOT validated (populated by the enrichment pipeline):
//   - Title, Description, Tags, Markdown, VectorKey
func ValidateScreenshot(s *Screenshot) error {
	if s == nil {
		return fmt.Errorf("%w: screenshot is nil", ErrInvalidScreenshot)
	}

	if strings.TrimSpace(s.Owner) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidScreenshot, ErrEmptyOwner)
	}

	if s.ImageURL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidScreenshot, ErrEmptyImageURL)
	}

	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %w: %dx%d", ErrInvalidScreenshot, ErrInvalidDimensions, s.Width, s.Height)
	}

	if !IsValidTimestamp(s.CapturedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidScreenshot, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks that a capture timestamp is set and not too far in the future.
func IsValidTimestamp(ts time.Time) bool {
	if ts.IsZero() || ts.Unix() <= 0 {
		return false
	}
	return !ts.After(time.Now().Add(MaxClockSkew))
}

// NormalizeTags trims tags, drops empty ones and removes duplicates.
// Order of first occurrence is preserved. A nil input stays nil.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}
