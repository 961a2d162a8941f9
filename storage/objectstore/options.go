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

package objectstore

import (
	"errors"
	"time"
)

const (
	// DefaultURLTTL is how long a signed access URL stays valid.
	DefaultURLTTL = time.Hour

	// DefaultThumbnailSize bounds the longest side of a thumbnail, in pixels.
	DefaultThumbnailSize = 320

	// DefaultMaxPixels bounds width*height of images accepted for decoding.
	DefaultMaxPixels = 64 << 20
)

// Option configures a Store.
type Option func(*Store) error

// WithBaseURL sets the URL prefix that object paths are appended to.
// Defaults to a file:// URL of the root directory.
func WithBaseURL(base string) Option {
	return func(s *Store) error {
		if base == "" {
			return errors.New("base URL cannot be empty")
		}
		s.baseURL = trimSlash(base)
		return nil
	}
}

// WithSigningKey sets the MAC key for access URLs. BLAKE2b accepts keys of
// 1 to 64 bytes.
func WithSigningKey(key []byte) Option {
	return func(s *Store) error {
		if len(key) == 0 || len(key) > 64 {
			return errors.New("signing key must be 1 to 64 bytes")
		}
		s.key = append([]byte(nil), key...)
		return nil
	}
}

// WithURLTTL sets the lifetime of signed URLs.
func WithURLTTL(ttl time.Duration) Option {
	return func(s *Store) error {
		if ttl <= 0 {
			return errors.New("URL TTL must be positive")
		}
		s.ttl = ttl
		return nil
	}
}

// WithThumbnailSize sets the longest side of generated thumbnails.
func WithThumbnailSize(px int) Option {
	return func(s *Store) error {
		if px <= 0 {
			return errors.New("thumbnail size must be positive")
		}
		s.thumbSize = px
		return nil
	}
}

// WithMaxPixels bounds the decoded size of accepted images.
func WithMaxPixels(n int) Option {
	return func(s *Store) error {
		if n <= 0 {
			return errors.New("max pixels must be positive")
		}
		s.maxPixels = n
		return nil
	}
}

// WithClock overrides the time source used for URL expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		s.now = now
		return nil
	}
}
