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

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedAnalyzer throttles calls to a wrapped analyzer with a token bucket.
type RateLimitedAnalyzer struct {
	next    Analyzer
	limiter *rate.Limiter
}

var _ Analyzer = (*RateLimitedAnalyzer)(nil)

// NewRateLimitedAnalyzer wraps next so that at most rps calls per second start,
// with bursts of up to burst calls.
func NewRateLimitedAnalyzer(next Analyzer, rps float64, burst int) *RateLimitedAnalyzer {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedAnalyzer{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Analyze waits for a token, then delegates.
// A context that expires while waiting fails the call.
func (r *RateLimitedAnalyzer) Analyze(ctx context.Context, image Image) (*Analysis, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Analyze(ctx, image)
}

// Close closes the wrapped analyzer if it holds resources.
func (r *RateLimitedAnalyzer) Close() error {
	return closeAnalyzer(r.next)
}
