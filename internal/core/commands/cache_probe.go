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

// This file defines the two commands that open every derivative chain.
//
// Logic Flow:
//  1. RequestFingerprint derives the cache identity of the request and stores
//     it under CtxFingerprint.
//  2. CacheProbe asks the store for every candidate key in order (the
//     requested format, else jpeg, png, webp). The first key that exists
//     becomes the result and the chain is halted; nothing is fetched.
//  3. When no key exists the chain simply continues to the fetch.
package commands

import (
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// RequestFingerprint computes the fingerprint of the request in the Context.
type RequestFingerprint struct {
	cor.BaseCommand
}

func NewRequestFingerprint(name string) *RequestFingerprint {
	out := &RequestFingerprint{BaseCommand: *cor.NewBaseCommand(name)}
	out.InputParamName = CtxRequest
	out.OutputParamName = CtxFingerprint
	return out
}

func (c *RequestFingerprint) Execute(context cor.Context) {
	req := RequestFrom(context)
	fp := model.Fingerprint(req)
	trace.SpanFromContext(context.GetContext()).SetAttributes(attribute.String("fingerprint", fp))
	context.Add(c.GetOutputParam(), fp)
	c.Succeed(context)
}

// CacheProbe looks for an already stored derivative.
type CacheProbe struct {
	cor.BaseCommand
	store  cloud.ArtifactStore
	hits   metricCounter
	misses metricCounter
}

// NewCacheProbe creates a probe against store.
func NewCacheProbe(name string, store cloud.ArtifactStore) *CacheProbe {
	out := &CacheProbe{BaseCommand: *cor.NewBaseCommand(name), store: store}
	out.InputParamName = CtxFingerprint
	out.OutputParamName = CtxRecord
	out.hits = newCounter(out.Meter, name+".counter.hit")
	out.misses = newCounter(out.Meter, name+".counter.miss")
	return out
}

func (c *CacheProbe) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && RequestFrom(context) != nil
}

func (c *CacheProbe) Execute(context cor.Context) {
	req := RequestFrom(context)
	fp := fingerprintFrom(context)
	ctx := context.GetContext()

	for _, format := range req.CandidateFormats() {
		key := model.KeyFor(req.Modality, fp, format)
		exists, err := c.store.Exists(ctx, key)
		if err != nil {
			c.Fail(context, err)
			return
		}
		if exists {
			slog.DebugContext(ctx, "derivative cache hit", "key", key)
			c.hits.add(context)
			context.Add(c.GetOutputParam(), &model.ArtifactRecord{Key: key, URL: c.store.PublicURL(key), Cached: true})
			context.Halt()
			c.Succeed(context)
			return
		}
	}
	c.misses.add(context)
	c.Succeed(context)
}
