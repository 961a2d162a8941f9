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

package ai

import "os"

// Selector yields the currently configured analysis backend name.
// It is consulted once per enrichment pass.
type Selector interface {
	Backend() string
}

// StaticSelector always selects the same backend.
type StaticSelector string

// Backend implements Selector.
func (s StaticSelector) Backend() string {
	return string(s)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func() string

// Backend implements Selector.
func (f SelectorFunc) Backend() string {
	return f()
}

// EnvSelector reads the backend name from an environment variable on every call,
// falling back to Fallback when the variable is unset.
type EnvSelector struct {
	Key      string
	Fallback string
}

// Backend implements Selector.
func (s EnvSelector) Backend() string {
	if v := os.Getenv(s.Key); v != "" {
		return v
	}
	return s.Fallback
}
