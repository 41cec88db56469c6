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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/services"
	test "github.com/jaycherian/gcp-go-media-derivatives/internal/testutil"
)

func TestExtractFrameWithinDuration(t *testing.T) {
	dir := t.TempDir()
	frame := test.JPEG(t, 16, 9)
	decoder := &test.FakeDecoder{Duration: 1, Frame: frame}

	out, err := services.NewVideoFrameExtractor(decoder, dir).ExtractFrame(context.Background(), test.MP4Header, 0.5)
	require.NoError(t, err)
	assert.Equal(t, frame, out)
	assert.Equal(t, 0.5, decoder.ExtractedAt)

	require.Len(t, decoder.Paths, 1)
	staged := decoder.Paths[0]
	assert.True(t, decoder.SawFile, "the video is staged before probing")
	assert.Equal(t, dir, filepath.Dir(staged))
	assert.True(t, strings.HasPrefix(filepath.Base(staged), "video-"))
	assert.NotEmpty(t, filepath.Ext(staged))
	_, err = os.Stat(staged)
	assert.True(t, errors.Is(err, os.ErrNotExist), "the scratch file is removed")
}

func TestExtractFrameOutsideDuration(t *testing.T) {
	decoder := &test.FakeDecoder{Duration: 0.4}

	_, err := services.NewVideoFrameExtractor(decoder, t.TempDir()).ExtractFrame(context.Background(), test.MP4Header, 1)
	classified, ok := mediaerr.As(err)
	require.True(t, ok)
	assert.Equal(t, mediaerr.InvalidInput, classified.Kind)
	assert.Equal(t, services.MsgTimeOutOfRange, classified.Message)
	assert.Equal(t, 0, decoder.ExtractCalls)

	require.Len(t, decoder.Paths, 1)
	_, err = os.Stat(decoder.Paths[0])
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExtractFrameNegativeTimeTouchesNothing(t *testing.T) {
	decoder := &test.FakeDecoder{Duration: 10}

	_, err := services.NewVideoFrameExtractor(decoder, t.TempDir()).ExtractFrame(context.Background(), test.MP4Header, -1)
	classified, ok := mediaerr.As(err)
	require.True(t, ok)
	assert.Equal(t, services.MsgTimeNegative, classified.Message)
	assert.Empty(t, decoder.Paths)
}

func TestExtractFrameDecoderMissing(t *testing.T) {
	decoder := &test.FakeDecoder{ProbeErr: fmt.Errorf("ffprobe: %w", services.ErrDecoderMissing)}

	_, err := services.NewVideoFrameExtractor(decoder, t.TempDir()).ExtractFrame(context.Background(), test.MP4Header, 0)
	classified, ok := mediaerr.As(err)
	require.True(t, ok)
	assert.Equal(t, mediaerr.DecoderUnavailable, classified.Kind)
	assert.Equal(t, services.MsgDecoderMissing, classified.Message)

	// A spawn failure that only mentions the binary is recognized too.
	decoder = &test.FakeDecoder{Duration: 5, ExtractErr: errors.New("Cannot find ffmpeg: not found")}
	_, err = services.NewVideoFrameExtractor(decoder, t.TempDir()).ExtractFrame(context.Background(), test.MP4Header, 0)
	assert.Equal(t, mediaerr.DecoderUnavailable, mediaerr.KindOf(err))
}

func TestExtractFrameToolFailure(t *testing.T) {
	decoder := &test.FakeDecoder{Duration: 5, ExtractErr: errors.New("exit status 1. ffmpeg stderr:\nInvalid data found when processing input")}

	_, err := services.NewVideoFrameExtractor(decoder, t.TempDir()).ExtractFrame(context.Background(), test.MP4Header, 2)
	classified, ok := mediaerr.As(err)
	require.True(t, ok)
	assert.Equal(t, mediaerr.ProcessingFailure, classified.Kind)
	assert.Equal(t, "Failed to extract video frame: exit status 1. ffmpeg stderr:\nInvalid data found when processing input", classified.Message)
}

func TestStderrTail(t *testing.T) {
	out := "one\ntwo\n\nthree\nfour\nfive\nsix\n"
	assert.Equal(t, "two\nthree\nfour\nfive\nsix", services.StderrTail(out, 5))
	assert.Equal(t, "six", services.StderrTail(out, 1))
	assert.Equal(t, "", services.StderrTail("  \n", 5))
}

func TestFFMpegDecoderMissingBinary(t *testing.T) {
	decoder := services.NewFFMpegDecoder(filepath.Join(t.TempDir(), "no-ffmpeg"), filepath.Join(t.TempDir(), "no-ffprobe"))
	_, err := decoder.ProbeDuration(context.Background(), "video.mp4")
	assert.ErrorIs(t, err, services.ErrDecoderMissing)
	_, err = decoder.ExtractFrame(context.Background(), "video.mp4", 1)
	assert.ErrorIs(t, err, services.ErrDecoderMissing)
}

func TestStagedVideoBelongsToTheCaller(t *testing.T) {
	dir := t.TempDir()
	decoder := &test.FakeDecoder{Duration: 2, Frame: test.JPEG(t, 8, 8)}
	extractor := services.NewVideoFrameExtractor(decoder, dir)

	path, err := extractor.StageVideo(test.MP4Header)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	_, err = extractor.FrameAt(context.Background(), path, 1)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err, "FrameAt leaves the staged file in place")

	_, err = extractor.FrameAt(context.Background(), path, -1)
	assert.Equal(t, mediaerr.InvalidInput, mediaerr.KindOf(err))
}
