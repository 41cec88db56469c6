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

// This file defines the command that writes a fresh derivative to the
// artifact store.
//
// Logic Flow:
//  1. The key is derived from the modality, the fingerprint and the format
//     the transform resolved. The store is not probed again: a derivative
//     stored under another candidate format in the meantime is simply written
//     next to it.
//  2. The bytes are written with their image content type and the configured
//     Cache-Control header.
//  3. The resulting ArtifactRecord (cached=false, with the measured
//     dimensions and format) becomes the result of the chain.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// ArtifactPersist stores the derivative in the Context.
type ArtifactPersist struct {
	cor.BaseCommand
	store        cloud.ArtifactStore
	cacheControl string
}

func NewArtifactPersist(name string, store cloud.ArtifactStore, cacheControl string) *ArtifactPersist {
	if cacheControl == "" {
		cacheControl = cloud.DefaultCacheControl
	}
	out := &ArtifactPersist{BaseCommand: *cor.NewBaseCommand(name), store: store, cacheControl: cacheControl}
	out.InputParamName = CtxDerivative
	out.OutputParamName = CtxRecord
	return out
}

func (c *ArtifactPersist) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && RequestFrom(context) != nil && fingerprintFrom(context) != ""
}

func (c *ArtifactPersist) Execute(context cor.Context) {
	req := RequestFrom(context)
	derivative := context.Get(c.GetInputParam()).(*model.Derivative)
	key := model.KeyFor(req.Modality, fingerprintFrom(context), derivative.Format)

	if err := c.store.Put(context.GetContext(), key, derivative.Data, derivative.Format.ContentType(), c.cacheControl); err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "stored derivative", "key", key, "bytes", len(derivative.Data))

	width, height := derivative.Width, derivative.Height
	context.Add(c.GetOutputParam(), &model.ArtifactRecord{
		Key:    key,
		URL:    c.store.PublicURL(key),
		Cached: false,
		Width:  &width,
		Height: &height,
		Format: derivative.Format,
	})
	c.Succeed(context)
}
