// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud holds the configuration model and the service clients. This
// file defines QuotaAwareStore, a decorator that keeps writes to the artifact
// store under a configured rate so a burst of cache misses cannot exhaust the
// bucket's request quota.
package cloud

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
)

// QuotaAwareStore rate limits Put on a wrapped ArtifactStore. Probes are not
// limited; they are cheap reads and a hit avoids a write altogether.
type QuotaAwareStore struct {
	ArtifactStore
	limiter *rate.Limiter
}

// NewQuotaAwareStore wraps store with a token bucket allowing writesPerSecond
// sustained writes and burst writes at once.
func NewQuotaAwareStore(store ArtifactStore, writesPerSecond float64, burst int) *QuotaAwareStore {
	if burst < 1 {
		burst = 1
	}
	return &QuotaAwareStore{
		ArtifactStore: store,
		limiter:       rate.NewLimiter(rate.Limit(writesPerSecond), burst),
	}
}

// Put waits for a write token, then delegates. Waiting honours ctx, so a
// caller that goes away stops queueing.
func (q *QuotaAwareStore) Put(ctx context.Context, key string, data []byte, contentType string, cacheControl string) error {
	if err := q.limiter.Wait(ctx); err != nil {
		return mediaerr.Storage(msgPutFailed, fmt.Errorf("waiting for write quota: %w", err))
	}
	return q.ArtifactStore.Put(ctx, key, data, contentType, cacheControl)
}
