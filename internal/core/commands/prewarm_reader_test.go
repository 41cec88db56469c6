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

package commands_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/services"
	test "github.com/jaycherian/gcp-go-media-derivatives/internal/testutil"
)

func newReader() *commands.PrewarmReader {
	resolver := test.StaticResolver{"media.example.com": {"93.184.216.34"}}
	return commands.NewPrewarmReader("prewarm-reader", services.NewRequestParser(services.NewURLGuard(resolver, false)))
}

func readMessage(t *testing.T, body interface{}) cor.Context {
	t.Helper()
	chCtx := cor.NewContextFrom(context.Background())
	chCtx.Add(cor.CtxIn, body)
	reader := newReader()
	require.True(t, reader.IsExecutable(chCtx))
	reader.Execute(chCtx)
	return chCtx
}

func TestPrewarmMessageValues(t *testing.T) {
	msg := &commands.PrewarmMessage{Params: map[string]any{
		"url":     "https://media.example.com/a.png",
		"width":   float64(320),
		"time":    1.5,
		"quality": nil,
	}}
	values, err := msg.Values()
	require.NoError(t, err)
	assert.Equal(t, "320", values.Get("width"))
	assert.Equal(t, "1.5", values.Get("time"))
	assert.False(t, values.Has("quality"))

	msg.Params["crop"] = []any{"fill"}
	_, err = msg.Values()
	assert.Error(t, err)
}

func TestPrewarmReaderImage(t *testing.T) {
	chCtx := readMessage(t, `{"params": {"url": "https://media.example.com/a.png", "width": 200, "format": "webp"}}`)
	require.False(t, chCtx.HasErrors(), "%v", chCtx.GetErrors())

	req := commands.RequestFrom(chCtx)
	require.NotNil(t, req)
	assert.Equal(t, model.ModalityImage, req.Modality)
	assert.Equal(t, 200, *req.Width)
	assert.Equal(t, model.FormatWEBP, *req.Format)
	assert.Equal(t, model.CropFill, req.Crop)
}

func TestPrewarmReaderVideo(t *testing.T) {
	chCtx := readMessage(t, `{"modality": "video", "params": {"url": "https://media.example.com/v.mp4", "time": 2, "width": 320}}`)
	require.False(t, chCtx.HasErrors(), "%v", chCtx.GetErrors())

	req := commands.RequestFrom(chCtx)
	assert.Equal(t, model.ModalityVideo, req.Modality)
	assert.Equal(t, 2.0, *req.Timestamp)
}

func TestPrewarmReaderMatchesQueryFingerprint(t *testing.T) {
	chCtx := readMessage(t, `{"params": {"url": "https://media.example.com/a.png", "width": 200}}`)
	require.False(t, chCtx.HasErrors())

	parser := services.NewRequestParser(services.NewURLGuard(test.StaticResolver{"media.example.com": {"93.184.216.34"}}, false))
	values := map[string][]string{"url": {"https://media.example.com/a.png"}, "width": {"200"}}
	fromQuery, err := parser.Parse(context.Background(), model.ModalityImage, values)
	require.NoError(t, err)

	assert.Equal(t, model.Fingerprint(fromQuery), model.Fingerprint(commands.RequestFrom(chCtx)))
}

func TestPrewarmReaderRejects(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		message string
	}{
		{"not a string", []byte("{}"), "pre-warm message must be a JSON string"},
		{"bad json", "{", "failed to unmarshal pre-warm message"},
		{"unknown modality", `{"modality": "audio", "params": {}}`, `unknown modality "audio"`},
		{"nested parameter", `{"params": {"url": {"href": "x"}}}`, "invalid pre-warm parameters"},
		{"missing url", `{"params": {"width": 10}}`, services.MsgURLRequired},
		{"video without time", `{"modality": "video", "params": {"url": "https://media.example.com/v.mp4"}}`, services.MsgTimeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chCtx := readMessage(t, tt.body)
			require.True(t, chCtx.HasErrors())
			classified, ok := mediaerr.As(cor.FirstError(chCtx))
			require.True(t, ok)
			assert.Equal(t, mediaerr.InvalidInput, classified.Kind)
			assert.Equal(t, tt.message, classified.Message)
			assert.Nil(t, commands.RequestFrom(chCtx))
		})
	}
}
