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

package commands

import (
	"context"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/services"
)

// Fetcher downloads a validated source URL. *services.RemoteFetcher
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, source *url.URL, target services.FetchTarget) (*model.RemoteResource, error)
}

// RemoteFetch downloads the source of the request in the Context under the
// limits of its modality.
type RemoteFetch struct {
	cor.BaseCommand
	fetcher Fetcher
	limits  cloud.Fetch
}

func NewRemoteFetch(name string, fetcher Fetcher, limits cloud.Fetch) *RemoteFetch {
	out := &RemoteFetch{BaseCommand: *cor.NewBaseCommand(name), fetcher: fetcher, limits: limits}
	out.InputParamName = CtxRequest
	out.OutputParamName = CtxResource
	return out
}

func (c *RemoteFetch) Execute(context cor.Context) {
	req := RequestFrom(context)
	source, err := url.Parse(req.SourceURL)
	if err != nil {
		c.Fail(context, mediaerr.Wrap(mediaerr.InvalidInput, services.MsgURLInvalid, err))
		return
	}

	target := services.FetchTarget{Modality: req.Modality, Limits: c.limits.Image}
	if req.Modality == model.ModalityVideo {
		target.Limits = c.limits.Video
	}

	resource, err := c.fetcher.Fetch(context.GetContext(), source, target)
	if err != nil {
		c.Fail(context, err)
		return
	}
	trace.SpanFromContext(context.GetContext()).SetAttributes(
		attribute.Int("bytes", len(resource.Data)),
		attribute.String("content_type", resource.ContentType),
	)
	context.Add(c.GetOutputParam(), resource)
	c.Succeed(context)
}
