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

package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

const msgProcessingFailed = "Failed to process image"

// ImageParams are the rendering options of one derivative.
type ImageParams struct {
	Width   *int
	Height  *int
	Format  *model.ImageFormat
	Quality *int
	Crop    model.CropMode
}

// ParamsFor extracts the rendering options from a request.
func ParamsFor(req *model.TransformRequest) ImageParams {
	return ImageParams{
		Width:   req.Width,
		Height:  req.Height,
		Format:  req.Format,
		Quality: req.Quality,
		Crop:    req.Crop,
	}
}

// ImageTransformer turns source bytes into a derivative.
type ImageTransformer struct {
	engine ImageEngine
}

// NewImageTransformer creates a transformer on top of engine.
func NewImageTransformer(engine ImageEngine) *ImageTransformer {
	return &ImageTransformer{engine: engine}
}

// ResolveFormat picks the output format: the requested one, else the source
// format when it is a supported output, else jpeg.
func ResolveFormat(requested *model.ImageFormat, source string) model.ImageFormat {
	if requested != nil {
		return *requested
	}
	if f := model.ImageFormat(source); f.Valid() {
		return f
	}
	return model.FormatJPEG
}

// Transform decodes data, resizes it when a dimension was requested and
// encodes it in the resolved format. The source bytes are returned unchanged
// when nothing about them would change. Every failure is a ProcessingFailure.
func (t *ImageTransformer) Transform(ctx context.Context, data []byte, params ImageParams) (*model.Derivative, error) {
	_, span := otel.Tracer("image-transformer").Start(ctx, "transform")
	defer span.End()

	img, source, err := t.engine.Decode(data)
	if err != nil {
		return nil, mediaerr.Processing(msgProcessingFailed, err)
	}
	format := ResolveFormat(params.Format, source)

	resized := false
	if params.Width != nil || params.Height != nil {
		img, resized = t.engine.Resize(img, ResizeOptions{
			Width:  params.Width,
			Height: params.Height,
			Fit:    params.Crop.Fit(),
		})
	}

	bounds := img.Bounds()
	out := &model.Derivative{Width: bounds.Dx(), Height: bounds.Dy(), Format: format}
	span.SetAttributes(
		attribute.String("source_format", source),
		attribute.String("format", string(format)),
		attribute.Int("width", out.Width),
		attribute.Int("height", out.Height),
	)

	if !resized && params.Quality == nil && params.Format == nil && string(format) == source {
		slog.DebugContext(ctx, "derivative identical to source", "format", format)
		out.Data = data
		return out, nil
	}

	encoded, err := t.engine.Encode(img, format, params.Quality)
	if err != nil {
		return nil, mediaerr.Processing(msgProcessingFailed, err)
	}
	out.Data = encoded
	return out, nil
}
