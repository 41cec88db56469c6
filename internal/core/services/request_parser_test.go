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

package services_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/services"
)

func parser() *services.RequestParser {
	return services.NewRequestParser(newGuard())
}

func query(t *testing.T, raw string) url.Values {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return values
}

func TestParseImageRequest(t *testing.T) {
	req, err := parser().Parse(context.Background(), model.ModalityImage,
		query(t, "url=https://example.com/image.png&width=100&height=200&format=webp&quality=80&crop=fit"))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/image.png", req.SourceURL)
	assert.Equal(t, 100, *req.Width)
	assert.Equal(t, 200, *req.Height)
	assert.Equal(t, model.FormatWEBP, *req.Format)
	assert.Equal(t, 80, *req.Quality)
	assert.Equal(t, model.CropFit, req.Crop)
	assert.Nil(t, req.Timestamp)
	assert.Equal(t, model.ModalityImage, req.Modality)
}

func TestParseUsesFirstOfRepeatedValues(t *testing.T) {
	req, err := parser().Parse(context.Background(), model.ModalityImage,
		query(t, "url=https://example.com/image.png&url=https://ignored.example&width=120&width=7"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/image.png", req.SourceURL)
	assert.Equal(t, 120, *req.Width)
}

func TestParseDefaultsAndAliases(t *testing.T) {
	req, err := parser().Parse(context.Background(), model.ModalityImage,
		query(t, "url=https://example.com/a&format=JPG&crop="))
	require.NoError(t, err)
	assert.Equal(t, model.FormatJPEG, *req.Format)
	assert.Equal(t, model.CropFill, req.Crop)
	assert.Nil(t, req.Width)
	assert.Nil(t, req.Quality)

	req, err = parser().Parse(context.Background(), model.ModalityImage, query(t, "url=https://example.com/a&crop=OUTSIDE&width=100.0"))
	require.NoError(t, err)
	assert.Equal(t, model.CropOutside, req.Crop)
	assert.Equal(t, 100, *req.Width)
}

func TestParseVideoRequest(t *testing.T) {
	req, err := parser().Parse(context.Background(), model.ModalityVideo,
		query(t, "url=https://example.com/video.mp4&time=2&width=160"))
	require.NoError(t, err)
	assert.Equal(t, 2.0, *req.Timestamp)
	assert.Equal(t, 160, *req.Width)
	assert.Nil(t, req.Height)
	assert.Nil(t, req.Format)
	assert.Nil(t, req.Quality)
	assert.Equal(t, model.CropMode(""), req.Crop, "video requests keep an absent crop empty")
}

func TestParseRejects(t *testing.T) {
	cases := map[string]struct {
		modality model.Modality
		raw      string
		msg      string
	}{
		"zero width":       {model.ModalityImage, "url=https://example.com/a&width=0", "width must be a positive integer"},
		"fraction height":  {model.ModalityImage, "url=https://example.com/a&height=1.5", "height must be a positive integer"},
		"word width":       {model.ModalityImage, "url=https://example.com/a&width=wide", "width must be a positive integer"},
		"empty width":      {model.ModalityImage, "url=https://example.com/a&width=", "width must be a positive integer"},
		"huge width":       {model.ModalityImage, "url=https://example.com/a&width=5001", "width must be <= 5000"},
		"quality zero":     {model.ModalityImage, "url=https://example.com/a&quality=0", "quality must be an integer between 1 and 100"},
		"quality high":     {model.ModalityImage, "url=https://example.com/a&quality=101", "quality must be an integer between 1 and 100"},
		"format gif":       {model.ModalityImage, "url=https://example.com/a&format=gif", "format must be jpeg, png, or webp"},
		"crop stretch":     {model.ModalityImage, "url=https://example.com/a&crop=stretch", "crop must be fill, fit, inside, or outside"},
		"missing time":     {model.ModalityVideo, "url=https://example.com/v.mp4", "time is required"},
		"negative time":    {model.ModalityVideo, "url=https://example.com/v.mp4&time=-1", "time must be a number >= 0"},
		"word time":        {model.ModalityVideo, "url=https://example.com/v.mp4&time=soon", "time must be a number >= 0"},
		"infinite time":    {model.ModalityVideo, "url=https://example.com/v.mp4&time=Inf", "time must be a number >= 0"},
		"missing url":      {model.ModalityImage, "width=10", services.MsgURLRequired},
		"private url":      {model.ModalityImage, "url=http://10.0.0.5/a.png", services.MsgURLPrivate},
		"video bad scheme": {model.ModalityVideo, "url=ftp://example.com/v.mp4&time=1", services.MsgURLScheme},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parser().Parse(context.Background(), tc.modality, query(t, tc.raw))
			classified, ok := mediaerr.As(err)
			require.True(t, ok, "error %v", err)
			assert.Equal(t, mediaerr.InvalidInput, classified.Kind)
			assert.Equal(t, tc.msg, classified.Message)
		})
	}
}
