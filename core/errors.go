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

import "errors"

// Domain validation errors
var (
	// ErrInvalidScreenshot indicates a Screenshot failed validation.
	ErrInvalidScreenshot = errors.New("invalid screenshot")

	// ErrInvalidID indicates a record identifier could not be parsed.
	ErrInvalidID = errors.New("invalid record id")

	// ErrEmptyOwner indicates the Owner field is empty.
	ErrEmptyOwner = errors.New("owner cannot be empty")

	// ErrEmptyImageURL indicates the ImageURL field is empty.
	ErrEmptyImageURL = errors.New("image url cannot be empty")

	// ErrInvalidDimensions indicates a non-positive width or height.
	ErrInvalidDimensions = errors.New("image dimensions must be positive")

	// ErrInvalidTimestamp indicates a capture timestamp that is unset or too far in the future.
	ErrInvalidTimestamp = errors.New("invalid capture timestamp")
)
