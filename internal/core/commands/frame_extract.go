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

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/services"
)

// FrameExtractor pulls one still frame out of a staged video.
// *services.VideoFrameExtractor satisfies it.
type FrameExtractor interface {
	StageVideo(data []byte) (string, error)
	FrameAt(ctx context.Context, path string, seconds float64) ([]byte, error)
}

// FrameExtract replaces the downloaded video with the frame at the requested
// timestamp. The frame is JPEG and feeds the image transform. The staged
// video is registered as a temp file of the Context, which removes it on
// Close.
type FrameExtract struct {
	cor.BaseCommand
	extractor FrameExtractor
}

func NewFrameExtract(name string, extractor FrameExtractor) *FrameExtract {
	out := &FrameExtract{BaseCommand: *cor.NewBaseCommand(name), extractor: extractor}
	out.InputParamName = CtxResource
	out.OutputParamName = CtxFrame
	return out
}

func (c *FrameExtract) Execute(context cor.Context) {
	req := RequestFrom(context)
	video := context.Get(c.GetInputParam()).(*model.RemoteResource)
	if req == nil || req.Timestamp == nil {
		c.Fail(context, mediaerr.Invalid(services.MsgTimeRequired))
		return
	}

	if err := services.CheckTimestamp(*req.Timestamp); err != nil {
		c.Fail(context, err)
		return
	}

	path, err := c.extractor.StageVideo(video.Data)
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.AddTempFile(path)

	frame, err := c.extractor.FrameAt(context.GetContext(), path, *req.Timestamp)
	if err != nil {
		c.Fail(context, err)
		return
	}
	// The video is no longer needed; drop the reference before the transform.
	context.Remove(c.GetInputParam())
	context.Add(c.GetOutputParam(), &model.RemoteResource{URL: video.URL, ContentType: model.FormatJPEG.ContentType(), Data: frame})
	c.Succeed(context)
}
